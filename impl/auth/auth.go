package auth

import (
	"crypto/subtle"
	"fmt"

	"giftbot/entity"
)

// Auth resolves API bearer tokens to the operators listed in the config.
type Auth struct {
	operators []entity.Operator
}

func New(operators []entity.Operator) *Auth {
	ops := make([]entity.Operator, 0, len(operators))
	for _, op := range operators {
		if op.Token == "" {
			continue
		}
		ops = append(ops, op)
	}
	return &Auth{operators: ops}
}

func (a *Auth) OperatorByToken(token string) (*entity.Operator, error) {
	if len(a.operators) == 0 {
		return nil, fmt.Errorf("no operators configured")
	}
	for _, op := range a.operators {
		if subtle.ConstantTimeCompare([]byte(op.Token), []byte(token)) == 1 {
			found := op
			return &found, nil
		}
	}
	return nil, fmt.Errorf("operator not found")
}
