package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. Every kind except KindInternal is a client
// facing validation failure with a fixed message.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindBadFile
	KindNoFile
	KindMalformedManifest
	KindDuplicatePackage
	KindWrongPackage
	KindExistingVersion
	KindNeedsManualReview
	KindBadNamespace
	KindPermissionDenied
	KindNotFound
	KindUnauthorized
	KindDisabled
	KindConflict
)

var kindNames = map[Kind]string{
	KindInternal:          "Internal",
	KindBadRequest:        "BadRequest",
	KindBadFile:           "BadFile",
	KindNoFile:            "NoFile",
	KindMalformedManifest: "MalformedManifest",
	KindDuplicatePackage:  "DuplicatePackage",
	KindWrongPackage:      "WrongPackage",
	KindExistingVersion:   "ExistingVersion",
	KindNeedsManualReview: "NeedsManualReview",
	KindBadNamespace:      "BadNamespace",
	KindPermissionDenied:  "PermissionDenied",
	KindNotFound:          "NotFound",
	KindUnauthorized:      "Unauthorized",
	KindDisabled:          "Disabled",
	KindConflict:          "Conflict",
}

var kindMessages = map[Kind]string{
	KindInternal:          "There was an error processing your request, please try again later",
	KindBadRequest:        "Invalid request",
	KindBadFile:           "The file must be a click or snap package",
	KindNoFile:            "No file upload specified",
	KindMalformedManifest: "Your package manifest is malformed",
	KindDuplicatePackage:  "A package with the same name already exists",
	KindWrongPackage:      "The uploaded package does not match the name of the package you are editing",
	KindExistingVersion:   "A revision already exists with this version",
	KindNeedsManualReview: "This app needs to be reviewed manually",
	KindBadNamespace:      "You package name is for a domain that you do not have access to",
	KindPermissionDenied:  "You do not have permission to update this app",
	KindNotFound:          "App not found",
	KindUnauthorized:      "Unauthorized",
	KindDisabled:          "Your account has been disabled at this time",
	KindConflict:          "The app was modified concurrently, please try again",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Status is the HTTP status code the kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindInternal:
		return http.StatusInternalServerError
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindDisabled:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// Message is the fixed client message of the kind.
func (k Kind) Message() string {
	if s, ok := kindMessages[k]; ok {
		return s
	}
	return kindMessages[KindInternal]
}

type Error struct {
	Kind Kind

	// Detail is extra client visible context, e.g. the review tool reason.
	Detail string

	// message overrides the generic message of internal errors.
	message string
	Err     error
}

type Option func(e *Error)

func WithKind(k Kind) Option {
	return func(e *Error) {
		e.Kind = k
	}
}

func WithBadRequest() Option {
	return WithKind(KindBadRequest)
}

func WithNotFound() Option {
	return WithKind(KindNotFound)
}

func WithDetail(detail string) Option {
	return func(e *Error) {
		e.Detail = detail
	}
}

// WithMessage sets the client message used for internal errors.
func WithMessage(msg string) Option {
	return func(e *Error) {
		e.message = msg
	}
}

func New(k Kind, opts ...Option) *Error {
	e := &Error{Kind: k}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Wrap annotates err. An already wrapped error keeps its kind unless an
// option changes it.
func Wrap(err error, opts ...Option) *Error {
	var e *Error
	if errors.As(err, &e) {
		c := *e
		for _, o := range opts {
			o(&c)
		}
		return &c
	}

	e = &Error{Kind: KindInternal, Err: err}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Detail != "" {
		s = fmt.Sprintf("%s (%s)", s, e.Detail)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClientMessage is the message safe to return to API clients. Internal
// details never leak through it.
func (e *Error) ClientMessage() string {
	switch e.Kind {
	case KindInternal:
		if e.message != "" {
			return e.message
		}
		return e.Kind.Message()
	case KindNeedsManualReview:
		if e.Detail == "" {
			return fmt.Sprintf("%s, please check you app using the click-review command", e.Kind.Message())
		}
		return fmt.Sprintf("%s (Error: %s)", e.Kind.Message(), e.Detail)
	case KindBadRequest:
		if e.Detail != "" {
			return e.Detail
		}
	}

	return e.Kind.Message()
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
