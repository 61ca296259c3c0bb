// internal/service/inventory/application/policy.go
package application

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"stocknexus/internal/service/inventory/domain"
)

// ReservationPolicy 用一条 CEL 表达式对预留请求做准入判断。
// 策略是运营可配置的，例如限制单笔预留的最大数量和最长 TTL:
//
//	quantity > 0 && quantity <= 1000 && ttl_seconds <= 7 * 24 * 3600
//
// 表达式可引用的变量: owner_type (string), quantity (int), ttl_seconds (int)。
type ReservationPolicy struct {
	expression string
	program    cel.Program
}

// NewReservationPolicy 编译表达式并构建策略。表达式必须求值为 bool。
func NewReservationPolicy(expression string) (*ReservationPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("owner_type", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("ttl_seconds", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid policy expression %q", expression)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("policy expression %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build policy program")
	}

	return &ReservationPolicy{expression: expression, program: program}, nil
}

// Admit 对一笔预留请求求值，拒绝时返回 ErrPolicyRejected。
func (p *ReservationPolicy) Admit(req *ReserveRequest) error {
	out, _, err := p.program.Eval(map[string]interface{}{
		"owner_type":  string(req.OwnerType),
		"quantity":    int64(req.Quantity),
		"ttl_seconds": int64(req.TTL.Seconds()),
	})
	if err != nil {
		return errors.Wrap(err, "policy evaluation failed")
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return fmt.Errorf("policy expression returned non-bool value %v", out.Value())
	}
	if !allowed {
		return errors.Wrapf(domain.ErrPolicyRejected, "request violates policy %q", p.expression)
	}
	return nil
}
