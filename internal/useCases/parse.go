package useCases

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

type Reason string

const (
	ReasonMissingFields         Reason = "missing_fields"
	ReasonInvalidCountry        Reason = "invalid_country"
	ReasonInvalidAmount         Reason = "invalid_amount"
	ReasonNonPositiveAmount     Reason = "non_positive_amount"
	ReasonUnsupportedAttachment Reason = "unsupported_attachment"
)

// InputError: ошибка ввода пользователя. Исправляется повторным вводом.
type InputError struct {
	Reason Reason
}

func (e *InputError) Error() string {
	return "invalid input: " + string(e.Reason)
}

func invalid(r Reason) *InputError {
	return &InputError{Reason: r}
}

var (
	countryPrefixes = []string{"страна:", "country:"}
	servicePrefixes = []string{"сервис:", "service:"}
)

type CountryService struct {
	Country string
	Service string
}

// ParseCountryService reads "Страна: ..." / "Сервис: ..." lines in any order.
// A repeated prefix overrides the earlier line.
func ParseCountryService(text string) (CountryService, *InputError) {
	var cs CountryService
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if v, ok := cutPrefixFold(line, countryPrefixes); ok {
			cs.Country = v
		} else if v, ok := cutPrefixFold(line, servicePrefixes); ok {
			cs.Service = v
		}
	}

	if cs.Country == "" || cs.Service == "" {
		return CountryService{}, invalid(ReasonMissingFields)
	}
	if !isCountryName(cs.Country) {
		return CountryService{}, invalid(ReasonInvalidCountry)
	}
	return cs, nil
}

func cutPrefixFold(line string, prefixes []string) (string, bool) {
	lower := strings.ToLower(line)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			_, value, _ := strings.Cut(line, ":")
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

// isCountryName: только буквы и пробелы, хотя бы одна буква.
func isCountryName(s string) bool {
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ':
		default:
			return false
		}
	}
	return letters > 0
}

// ParseAmount accepts "50", "50.00" and "50,00". Сумма в USD, не точнее цента.
func ParseAmount(text string) (decimal.Decimal, *InputError) {
	raw := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if raw == "" || strings.ContainsAny(raw, "eE") {
		return decimal.Zero, invalid(ReasonInvalidAmount)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid(ReasonInvalidAmount)
	}
	if !amount.IsPositive() {
		return decimal.Zero, invalid(ReasonNonPositiveAmount)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, invalid(ReasonInvalidAmount)
	}
	return amount, nil
}

const (
	defaultDocumentExt = ".pdf"
	photoExt           = ".jpg"
)

// ReceiptExt classifies an attachment as a receipt and picks the stored file extension.
func ReceiptExt(msg domain.Message) (string, *InputError) {
	if msg.Attachment == nil {
		return "", invalid(ReasonUnsupportedAttachment)
	}
	switch msg.Kind {
	case domain.MessageDocument:
		if ext := filepath.Ext(msg.Attachment.FileName); ext != "" && ext != "." {
			return strings.ToLower(ext), nil
		}
		return defaultDocumentExt, nil
	case domain.MessagePhoto:
		return photoExt, nil
	default:
		return "", invalid(ReasonUnsupportedAttachment)
	}
}

// parseCommand returns the command name for "/start" and "/start@SomeBot args".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", false
	}
	return strings.ToLower(name), true
}
