// Package tr передаёт транзакцию pgx через контекст между usecase и репозиториями.
package tr

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pixloft/go-backend/pkg/e"
)

const txKey = "tx"

// CtxWithTx кладёт транзакцию в контекст для передачи репозиториям.
func CtxWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// TxFromCtx извлекает транзакцию из контекста.
func TxFromCtx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	if !ok {
		return nil, e.ErrTransactionNotFound
	}

	return tx, nil
}
