package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// txKey is a private context key type for the request transaction.
type txKey struct{}

// DBSession begins a database transaction per request and stores it in the
// request context for handlers that persist data. The transaction commits
// when the response status is below 400 and rolls back otherwise. A nil db
// disables the middleware entirely.
func DBSession(db *gorm.DB, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if db == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tx := db.WithContext(r.Context()).Begin()
			if tx.Error != nil {
				logger.Error("Failed to begin transaction",
					zap.Error(tx.Error),
					zap.String("path", r.URL.Path),
				)
				WriteJSONError(w, http.StatusInternalServerError, "Internal Server Error", TraceIDFromRequest(r))
				return
			}

			sw := NewStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(WithTx(r.Context(), tx)))

			if sw.Status() < http.StatusBadRequest {
				if err := tx.Commit().Error; err != nil {
					// The response is already on the wire; all we can do is log.
					logger.Error("Failed to commit transaction",
						zap.Error(err),
						zap.String("path", r.URL.Path),
					)
				}
			} else {
				if err := tx.Rollback().Error; err != nil {
					logger.Error("Failed to rollback transaction",
						zap.Error(err),
						zap.String("path", r.URL.Path),
					)
				}
			}
		})
	}
}

// WithTx stores a transaction in the context.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the request transaction, or nil when DBSession is
// not configured.
func TxFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}
