package marketplace

import "errors"

var (
	// ErrNilState indicates the engine has no state backend configured.
	ErrNilState = errors.New("marketplace: state not configured")
	// ErrNilCertificates indicates no certificate registry is wired.
	ErrNilCertificates = errors.New("marketplace: certificate registry not configured")
	// ErrNotAuthorized indicates the caller lacks the required role or does
	// not own the course.
	ErrNotAuthorized = errors.New("marketplace: caller not authorized")
	// ErrInvalidPrice indicates a nil, zero or negative listing price.
	ErrInvalidPrice = errors.New("marketplace: invalid price")
	// ErrInvalidRevenueShare indicates a creator share above 100 percent.
	ErrInvalidRevenueShare = errors.New("marketplace: revenue share exceeds 100")
	// ErrCourseNotFound indicates the queried course does not exist.
	ErrCourseNotFound = errors.New("marketplace: course not found")
	// ErrCourseInactive indicates the course is not open for purchase.
	ErrCourseInactive = errors.New("marketplace: course inactive")
	// ErrInsufficientFunds indicates the buyer cannot cover the price.
	ErrInsufficientFunds = errors.New("marketplace: insufficient funds")
	// ErrNothingToWithdraw indicates no accrued revenue is available.
	ErrNothingToWithdraw = errors.New("marketplace: nothing to withdraw")
	// ErrNotEnrolled indicates the student never purchased the course.
	ErrNotEnrolled = errors.New("marketplace: student not enrolled")
)
