// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"stocknexus/internal/pkg/logger"
)

// Config 汇总了服务运行所需的全部配置。
// 默认值面向本地开发环境，生产环境通过配置文件与环境变量覆盖。
type Config struct {
	App struct {
		Sweeper struct {
			Interval    time.Duration `yaml:"interval"`
			BatchSize   int           `yaml:"batch_size"`
			Parallelism int           `yaml:"parallelism"`
		} `yaml:"sweeper"`
		Policy struct {
			// Expression 是一条 CEL 表达式，对预订请求做准入判断。
			Expression string `yaml:"expression"`
		} `yaml:"policy"`
		Topics struct {
			Receipt      string `yaml:"receipt"`
			StockUpdates string `yaml:"stock_updates"`
		} `yaml:"topics"`
		DedupTTL time.Duration `yaml:"dedup_ttl"`
	} `yaml:"app"`
	Infra struct {
		Mysql struct {
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Addr     string `yaml:"addr"`
			Database string `yaml:"database"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Zookeeper struct {
			Addrs []string `yaml:"addrs"`
		} `yaml:"zookeeper"`
		Nacos struct {
			Addrs     string `yaml:"addrs"`
			Namespace string `yaml:"namespace"`
			Group     string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// Init 加载配置。查找顺序: CONFIG_PATH 环境变量 > ./config.yaml。
// 找不到配置文件时使用内置默认值，个别关键项仍可被环境变量覆盖。
func Init() {
	configOnce.Do(func() {
		currentConfig = defaultConfig()

		path := getEnv("CONFIG_PATH", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &currentConfig); err != nil {
				logger.Logger().Fatal().Err(err).Str("path", path).Msg("invalid config file")
			}
			logger.Logger().Info().Str("path", path).Msg("config loaded")
		}

		applyEnvOverrides(&currentConfig)
	})
}

// GetCurrentConfig 返回当前生效的配置。
func GetCurrentConfig() *Config {
	return &currentConfig
}

func defaultConfig() Config {
	var c Config
	c.App.Sweeper.Interval = 5 * time.Minute
	c.App.Sweeper.BatchSize = 200
	c.App.Sweeper.Parallelism = 8
	c.App.Policy.Expression = `quantity > 0 && quantity <= 1000 && ttl_seconds <= 7 * 24 * 3600`
	c.App.Topics.Receipt = "po-receipt-topic"
	c.App.Topics.StockUpdates = "stock-updates-topic"
	c.App.DedupTTL = 14 * 24 * time.Hour
	c.Infra.Mysql.User = "root"
	c.Infra.Mysql.Password = "root"
	c.Infra.Mysql.Addr = "localhost:3306"
	c.Infra.Mysql.Database = "stocknexus"
	c.Infra.Redis.Addr = "localhost:6379"
	c.Infra.Kafka.Brokers = []string{"localhost:9092"}
	c.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	c.Infra.Zookeeper.Addrs = []string{"localhost:2181"}
	c.Infra.Nacos.Addrs = "localhost:8848"
	c.Infra.Nacos.Group = "DEFAULT_GROUP"
	return c
}

func applyEnvOverrides(c *Config) {
	if v, ok := os.LookupEnv("MYSQL_ADDR"); ok {
		c.Infra.Mysql.Addr = v
	}
	if v, ok := os.LookupEnv("MYSQL_USER"); ok {
		c.Infra.Mysql.User = v
	}
	if v, ok := os.LookupEnv("MYSQL_PASSWORD"); ok {
		c.Infra.Mysql.Password = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		c.Infra.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		c.Infra.Jaeger.Endpoint = v
	}
	if v, ok := os.LookupEnv("ZOOKEEPER_ADDRS"); ok {
		c.Infra.Zookeeper.Addrs = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("NACOS_SERVER_ADDRS"); ok {
		c.Infra.Nacos.Addrs = v
	}
	if v, ok := os.LookupEnv("NACOS_NAMESPACE"); ok {
		c.Infra.Nacos.Namespace = v
	}
	if v, ok := os.LookupEnv("NACOS_GROUP"); ok {
		c.Infra.Nacos.Group = v
	}
}

// getEnv 从环境变量中读取配置，读不到时返回默认值。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
