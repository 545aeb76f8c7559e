package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the stable failure category reported to callers of the relay.
type ErrorKind string

const (
	KindUnauthenticated          ErrorKind = "Unauthenticated"
	KindInvalidInput             ErrorKind = "InvalidInput"
	KindProviderAuthError        ErrorKind = "ProviderAuthError"
	KindProviderQuotaExceeded    ErrorKind = "ProviderQuotaExceeded"
	KindProviderRateLimited      ErrorKind = "ProviderRateLimited"
	KindProviderModelUnavailable ErrorKind = "ProviderModelUnavailable"
	KindProviderUnknownError     ErrorKind = "ProviderUnknownError"
)

// userMessages holds the fixed user-facing text for every kind. Provider text
// never replaces these.
var userMessages = map[ErrorKind]string{
	KindUnauthenticated:          "Требуется авторизация",
	KindInvalidInput:             "Сообщение не может быть пустым",
	KindProviderAuthError:        "Сервис ИИ отклонил ключ доступа. Обратитесь к администратору.",
	KindProviderQuotaExceeded:    "Квота сервиса ИИ исчерпана. Попробуйте позже.",
	KindProviderRateLimited:      "Слишком много запросов к сервису ИИ. Попробуйте через минуту.",
	KindProviderModelUnavailable: "Модели ИИ сейчас недоступны. Попробуйте позже.",
	KindProviderUnknownError:     "Не удалось получить ответ от сервиса ИИ. Попробуйте позже.",
}

// UserMessage returns the localized message for the kind.
func (k ErrorKind) UserMessage() string {
	if msg, ok := userMessages[k]; ok {
		return msg
	}
	return userMessages[KindProviderUnknownError]
}

// HTTPStatus maps the kind onto the status code returned by the relay endpoint.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// SessionWide reports whether a failure of this kind would repeat for every
// model, because it concerns the credential rather than the model.
func (k ErrorKind) SessionWide() bool {
	switch k {
	case KindProviderAuthError, KindProviderQuotaExceeded, KindProviderRateLimited:
		return true
	default:
		return false
	}
}

// ProviderError is the structured failure returned by provider adapters.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		b.WriteString(" ")
		b.WriteString(e.Model)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classification is the outcome of classifying a raw provider failure.
type Classification struct {
	Kind    ErrorKind
	Message string
	Details string
}

type classifierRule struct {
	kind     ErrorKind
	statuses []int
	tokens   []string
}

// classifierRules is evaluated top to bottom and the first match wins. Order
// matters: provider messages often mention several categories at once, and
// billing must beat the generic rate-limit wording.
var classifierRules = []classifierRule{
	{
		kind:     KindProviderAuthError,
		statuses: []int{http.StatusUnauthorized},
		tokens: []string{
			"api key", "api_key", "apikey", "unauthenticated", "unauthorized",
			"authentication", "invalid key", "credential",
		},
	},
	{
		kind:     KindProviderAuthError,
		statuses: []int{http.StatusForbidden},
		tokens:   []string{"permission", "forbidden", "access denied"},
	},
	{
		kind:     KindProviderQuotaExceeded,
		statuses: []int{http.StatusPaymentRequired},
		tokens:   []string{"billing", "insufficient", "payment", "credit balance", "funds"},
	},
	{
		kind:     KindProviderRateLimited,
		statuses: []int{http.StatusTooManyRequests},
		tokens: []string{
			"rate limit", "rate_limit", "rate-limit", "ratelimit", "quota",
			"limit exceeded", "limit reached", "too many requests", "resource_exhausted",
		},
	},
	{
		kind:     KindProviderModelUnavailable,
		statuses: []int{http.StatusNotFound},
		tokens:   []string{"not found", "does not exist", "no such model", "unknown model", "not supported"},
	},
}

// Classify maps any error surfaced by a provider onto an ErrorKind. It is
// total: nil and unrecognized errors become ProviderUnknownError.
func Classify(err error) Classification {
	if err == nil {
		return newClassification(KindProviderUnknownError, "")
	}

	status := 0
	var perr *ProviderError
	if errors.As(err, &perr) {
		status = perr.StatusCode
	}
	text := strings.ToLower(err.Error())

	for _, rule := range classifierRules {
		if rule.matches(status, text) {
			return newClassification(rule.kind, err.Error())
		}
	}
	return newClassification(KindProviderUnknownError, err.Error())
}

func (r classifierRule) matches(status int, text string) bool {
	for _, s := range r.statuses {
		if status == s {
			return true
		}
	}
	for _, token := range r.tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func newClassification(kind ErrorKind, details string) Classification {
	return Classification{Kind: kind, Message: kind.UserMessage(), Details: details}
}

// callerGone reports whether the relay's own context has ended, meaning the
// client went away or the request deadline passed.
func callerGone(ctx context.Context) bool {
	return ctx.Err() != nil
}
