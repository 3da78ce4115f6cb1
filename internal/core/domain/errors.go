package domain

const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidState      = "INVALID_STATE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeDuplicateRequest  = "DUPLICATE_REQUEST"
	CodeProductInactive   = "PRODUCT_INACTIVE"
	CodeAlreadyExists     = "ALREADY_EXISTS"
)

// DomainError is a business rule failure with a stable code and a
// user-facing message.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so errors.Is works against
// the sentinels even when a more specific message was built.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound          = NewDomainError(CodeNotFound, "resource not found")
	ErrInvalidInput      = NewDomainError(CodeInvalidInput, "invalid input")
	ErrInvalidState      = NewDomainError(CodeInvalidState, "operation not allowed in current state")
	ErrInsufficientStock = NewDomainError(CodeInsufficientStock, "재고 부족")
	ErrDuplicateRequest  = NewDomainError(CodeDuplicateRequest, "duplicate request")
	ErrProductInactive   = NewDomainError(CodeProductInactive, "product is inactive")
	ErrAlreadyExists     = NewDomainError(CodeAlreadyExists, "resource already exists")
)

func InvalidInput(message string) *DomainError {
	return NewDomainError(CodeInvalidInput, message)
}

func NotFound(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}
