package recovery

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/calsync/internal/core/domain"
)

// Kind is the normalized category of a calendar failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindQuota
	KindBackend
	KindTransport
	KindNotFound
	KindPermissionDenied
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindQuota:
		return "quota"
	case KindBackend:
		return "backend"
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind may succeed on a later attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindQuota, KindBackend, KindTransport:
		return true
	}
	return false
}

// Failure is the classified view of an error returned by the calendar client.
type Failure struct {
	Kind    Kind
	Code    int
	Status  string
	Message string
	Reasons []string
	Err     error
}

// Retryable reports whether the failure is worth retrying.
func (f Failure) Retryable() bool {
	return f.Kind.Retryable()
}

// IsRetryable reports whether err is a transient calendar failure.
func IsRetryable(err error) bool {
	return Classify(err).Retryable()
}

// Classify maps a raw calendar client error into a Failure.
func Classify(err error) Failure {
	if err == nil {
		return Failure{Kind: KindUnknown}
	}
	f := Failure{Kind: KindUnknown, Message: err.Error(), Err: err}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		f.Code = apiErr.Code
		f.Status = apiErr.Status
		f.Message = apiErr.Message
		f.Reasons = apiErr.Reasons()
		f.Kind = classifyAPIError(apiErr)
		return f
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		f.Status = st.Code().String()
		f.Message = st.Message()
		f.Reasons = grpcReasons(st)
		f.Kind = classifyGRPC(st.Code(), f.Reasons)
		if f.Kind != KindUnknown {
			return f
		}
	}

	if errors.Is(err, domain.ErrInvalidAppointment) {
		f.Kind = KindInvalidArgument
		return f
	}

	if isTransportError(err) {
		f.Kind = KindTransport
	}
	return f
}

// Statuses carried by the calendar API error body that are always transient.
var retryableStatuses = map[string]Kind{
	"RATE_LIMIT_EXCEEDED": KindRateLimited,
	"QUOTA_EXCEEDED":      KindQuota,
	"BACKEND_ERROR":       KindBackend,
	"INTERNAL_ERROR":      KindBackend,
}

// Calendar returns some throttling as 403 with one of these reasons.
var reasonKinds = map[string]Kind{
	"rateLimitExceeded":       KindRateLimited,
	"userRateLimitExceeded":   KindRateLimited,
	"quotaExceeded":           KindQuota,
	"dailyLimitExceeded":      KindQuota,
	"backendError":            KindBackend,
	"internalError":           KindBackend,
	"notFound":                KindNotFound,
	"deleted":                 KindNotFound,
	"forbidden":               KindPermissionDenied,
	"insufficientPermissions": KindPermissionDenied,
	"accessNotConfigured":     KindPermissionDenied,
	"invalid":                 KindInvalidArgument,
	"required":                KindInvalidArgument,
	"timeRangeEmpty":          KindInvalidArgument,
}

func classifyAPIError(e *domain.APIError) Kind {
	statusName := strings.ToUpper(e.Status)
	if kind, ok := retryableStatuses[statusName]; ok {
		return kind
	}

	reasons := e.Reasons()
	for _, r := range reasons {
		if kind, ok := reasonKinds[r]; ok && kind.Retryable() {
			return kind
		}
	}

	switch e.Code {
	case 429:
		return KindRateLimited
	case 500, 502, 503, 504:
		return KindBackend
	}

	if v, ok := code.Code_value[statusName]; ok {
		if kind := classifyCanonical(code.Code(v)); kind != KindUnknown {
			return kind
		}
	}

	for _, r := range reasons {
		if kind, ok := reasonKinds[r]; ok {
			return kind
		}
	}

	switch e.Code {
	case 404, 410:
		return KindNotFound
	case 401, 403:
		return KindPermissionDenied
	case 400:
		return KindInvalidArgument
	}
	return KindUnknown
}

func classifyCanonical(c code.Code) Kind {
	switch c {
	case code.Code_RESOURCE_EXHAUSTED:
		return KindRateLimited
	case code.Code_UNAVAILABLE, code.Code_INTERNAL:
		return KindBackend
	case code.Code_NOT_FOUND:
		return KindNotFound
	case code.Code_PERMISSION_DENIED, code.Code_UNAUTHENTICATED:
		return KindPermissionDenied
	case code.Code_INVALID_ARGUMENT, code.Code_FAILED_PRECONDITION, code.Code_OUT_OF_RANGE:
		return KindInvalidArgument
	}
	return KindUnknown
}

// grpcReasons collects ErrorInfo reasons attached to a status.
func grpcReasons(st *status.Status) []string {
	var reasons []string
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetReason() != "" {
			reasons = append(reasons, info.GetReason())
		}
	}
	return reasons
}

func classifyGRPC(c codes.Code, reasons []string) Kind {
	for _, r := range reasons {
		if kind, ok := retryableStatuses[strings.ToUpper(r)]; ok {
			return kind
		}
		if kind, ok := reasonKinds[r]; ok && kind.Retryable() {
			return kind
		}
	}

	switch c {
	case codes.DeadlineExceeded:
		return KindTransport
	default:
		return classifyCanonical(code.Code(c))
	}
}

func isTransportError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
