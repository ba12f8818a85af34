// internal/app/system/txn/txn.go
//
// Package txn runs multi-document work inside a MongoDB transaction when
// the deployment supports one, and tells callers when it does not so they
// can fall back to an ordered-write-plus-compensation path.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Command error codes that indicate transactions are unavailable on this
// deployment (standalone server, old wire version, illegal operation).
const (
	codeIllegalOperation    = 20
	codeCommandNotSupported = 51
	codeOperationNotSupp    = 263
)

// Run executes fn inside a multi-document transaction on a fresh session.
// The callback's writes must use the SessionContext it receives. Errors
// from fn abort the transaction and are returned unchanged.
//
// Callers should check IsNotSupported on the returned error: standalone
// MongoDB servers reject sessions/transactions, and that is an expected
// condition, not a failure of the work itself.
func Run(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// IsNotSupported reports whether err indicates the deployment cannot run
// multi-document transactions. It recognizes the relevant server error
// codes and, as a fallback, common message shapes from proxies and older
// servers that do not set a code.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case codeIllegalOperation, codeCommandNotSupported, codeOperationNotSupp:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") && strings.Contains(msg, "replica set") {
		return true
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	if strings.Contains(msg, "transaction") && strings.Contains(msg, "session") {
		return true
	}
	if strings.Contains(msg, "illegal operation") && strings.Contains(msg, "transaction") {
		return true
	}
	return false
}
