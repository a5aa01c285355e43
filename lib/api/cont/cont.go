package cont

import (
	"context"

	"giftbot/entity"
)

type ctxKey string

const OperatorKey ctxKey = "operator"

func PutOperator(c context.Context, op *entity.Operator) context.Context {
	return context.WithValue(c, OperatorKey, *op)
}

func GetOperator(c context.Context) *entity.Operator {
	op, ok := c.Value(OperatorKey).(entity.Operator)
	if !ok {
		return &entity.Operator{}
	}
	return &op
}
