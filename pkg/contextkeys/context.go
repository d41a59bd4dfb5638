package contextkeys

// Custom key type to avoid collisions with other packages using the context.
type contextKey string

// DBContextKey is the key under which the *gorm.DB handle (connection pool or
// an open transaction) is stored in the request context.
const DBContextKey = contextKey("db")
