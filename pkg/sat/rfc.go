package sat

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Persona moral: 3 letras + fecha AAMMDD + homoclave (3). Persona física: 4 letras + fecha + homoclave.
var (
	rfcMoralRe  = regexp.MustCompile(`^[A-ZÑ&]{3}[0-9]{6}[A-Z0-9]{3}$`)
	rfcFisicaRe = regexp.MustCompile(`^[A-ZÑ&]{4}[0-9]{6}[A-Z0-9]{3}$`)
	postalRe    = regexp.MustCompile(`^[0-9]{5}$`)
	uuidRe      = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)
)

// NormalizeRFC pasa a mayúsculas y elimina espacios y guiones.
func NormalizeRFC(rfc string) string {
	r := strings.ToUpper(strings.TrimSpace(rfc))
	r = strings.ReplaceAll(r, "-", "")
	return strings.ReplaceAll(r, " ", "")
}

// IsPersonaMoral indica si el RFC (ya normalizado) corresponde a una persona moral (12 caracteres).
func IsPersonaMoral(rfc string) bool {
	return len([]rune(rfc)) == 12
}

// IsGenericRFC indica si el RFC es uno de los genéricos (público en general o extranjero).
func IsGenericRFC(rfc string) bool {
	return rfc == RFCGenericoNacional || rfc == RFCGenericoExtranjero
}

// ValidateRFC valida la estructura del RFC y que la fecha embebida (AAMMDD) exista.
// Los RFC genéricos se aceptan sin validar fecha.
func ValidateRFC(rfc string) error {
	r := NormalizeRFC(rfc)
	if r == "" {
		return fmt.Errorf("sat: RFC vacío")
	}
	if IsGenericRFC(r) {
		return nil
	}
	runes := []rune(r)
	var datePart string
	switch {
	case rfcMoralRe.MatchString(r):
		datePart = string(runes[3:9])
	case rfcFisicaRe.MatchString(r):
		datePart = string(runes[4:10])
	default:
		return fmt.Errorf("sat: RFC %q con estructura inválida", rfc)
	}
	if _, err := time.Parse("060102", datePart); err != nil {
		return fmt.Errorf("sat: RFC %q contiene una fecha inválida (%s)", rfc, datePart)
	}
	return nil
}

// ValidateCodigoPostal valida un código postal de 5 dígitos.
func ValidateCodigoPostal(cp string) error {
	if !postalRe.MatchString(cp) {
		return fmt.Errorf("sat: código postal %q inválido (5 dígitos)", cp)
	}
	return nil
}

// IsUUID indica si s tiene formato de folio fiscal (UUID 8-4-4-4-12).
func IsUUID(s string) bool {
	return uuidRe.MatchString(s)
}

// RegimenAplica indica si el régimen existe y aplica al tipo de persona del RFC.
// Para RFC genéricos solo se exige que el régimen exista.
func RegimenAplica(regimen, rfc string) bool {
	reg, ok := RegimenesFiscales[regimen]
	if !ok {
		return false
	}
	r := NormalizeRFC(rfc)
	if IsGenericRFC(r) {
		return true
	}
	if IsPersonaMoral(r) {
		return reg.Moral
	}
	return reg.Fisica
}
