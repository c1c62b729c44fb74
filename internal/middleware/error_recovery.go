package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"supportapp/internal/observability"
	contextutils "supportapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorRecoveryConfig configures error recovery behavior
type ErrorRecoveryConfig struct {
	// EnableCircuitBreaker sheds ticket traffic while the tracker keeps failing
	EnableCircuitBreaker bool
	// CircuitBreakerThreshold specifies consecutive 5xx responses before the circuit opens
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout specifies how long to wait before letting a probe request through
	CircuitBreakerTimeout time.Duration
}

// DefaultErrorRecoveryConfig returns a default error recovery configuration
func DefaultErrorRecoveryConfig() *ErrorRecoveryConfig {
	return &ErrorRecoveryConfig{
		EnableCircuitBreaker:    false,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

// circuitBreakerState represents the state of a circuit breaker
type circuitBreakerState int

const (
	circuitClosed circuitBreakerState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker tracks failures and manages circuit state
type circuitBreaker struct {
	mu          sync.Mutex
	state       circuitBreakerState
	failures    int
	lastFailure time.Time
	config      *ErrorRecoveryConfig
	now         func() time.Time
}

// newCircuitBreaker creates a new circuit breaker
func newCircuitBreaker(config *ErrorRecoveryConfig) *circuitBreaker {
	return &circuitBreaker{
		state:  circuitClosed,
		config: config,
		now:    time.Now,
	}
}

// canExecute checks if the circuit breaker allows execution
func (cb *circuitBreaker) canExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed, circuitHalfOpen:
		return true
	case circuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.config.CircuitBreakerTimeout {
			cb.state = circuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// recordSuccess records a successful execution
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = circuitClosed
}

// recordFailure records a failed execution
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = cb.now()

	if cb.failures >= cb.config.CircuitBreakerThreshold || cb.state == circuitHalfOpen {
		cb.state = circuitOpen
	}
}

// ErrorRecoveryMiddleware creates middleware for handling panics and shedding load while the tracker is down
func ErrorRecoveryMiddleware(logger *observability.Logger, config *ErrorRecoveryConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultErrorRecoveryConfig()
	}
	if logger == nil {
		logger = observability.NewLogger(nil)
	}

	var cb *circuitBreaker
	if config.EnableCircuitBreaker {
		cb = newCircuitBreaker(config)
	}

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				stackTrace := string(debug.Stack())

				var panicErr error
				if e, ok := rec.(error); ok {
					panicErr = e
				} else {
					panicErr = contextutils.ErrorWithContextf("panic: %v", rec)
				}

				logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
					"method":      c.Request.Method,
					"path":        c.Request.URL.Path,
					"stack_trace": stackTrace,
				})

				appErr := contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInternalError,
					contextutils.SeverityFatal,
					"Internal server error",
					"A panic occurred while processing the request",
					panicErr,
				)

				// Add stack trace to error details in development
				if gin.Mode() == gin.DebugMode {
					appErr.Details = fmt.Sprintf("%s\nStack trace: %s", appErr.Details, stackTrace)
				}

				writeError(c, http.StatusInternalServerError, appErr)
				c.Abort()
			}
		}()

		if cb != nil && !cb.canExecute() {
			writeError(c, http.StatusServiceUnavailable, contextutils.NewAppError(
				contextutils.ErrorCodeServiceUnavailable,
				contextutils.SeverityError,
				"Service temporarily unavailable due to high error rate",
				"",
			))
			c.Abort()
			return
		}

		c.Next()

		if cb != nil {
			if c.Writer.Status() >= 500 {
				cb.recordFailure()
			} else {
				cb.recordSuccess()
			}
		}
	}
}

// writeError sends the ticket response envelope for a failed request
func writeError(c *gin.Context, status int, appErr *contextutils.AppError) {
	body := appErr.ToJSON()
	body["success"] = false
	c.JSON(status, body)
}
