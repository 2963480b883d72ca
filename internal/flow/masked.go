package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/mfaflow/internal/driver"
	"github.com/ternarybob/mfaflow/internal/models"
)

// ParsePosition converts a raw position marker into a 1-based position.
// The marker must be ASCII digits only; a missing marker, surrounding whitespace or a sign
// fails with driver.ErrInvalidPosition.
func ParsePosition(raw string, present bool) (int, error) {
	if !present {
		return 0, fmt.Errorf("%w: position attribute missing", driver.ErrInvalidPosition)
	}
	if raw == "" || strings.IndexFunc(raw, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, fmt.Errorf("%w: %q is not numeric", driver.ErrInvalidPosition, raw)
	}
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is out of range", driver.ErrInvalidPosition, raw)
	}
	return pos, nil
}

// PlanMaskedWrites maps each enabled field to the password character it must receive.
// Disabled fields are skipped. Positions index runes, not bytes, and must lie in 1..len(password);
// the first violation fails the whole plan so nothing is written.
func PlanMaskedWrites(password string, fields []models.MaskedField) ([]models.MaskedWrite, error) {
	runes := []rune(password)

	writes := make([]models.MaskedWrite, 0, len(fields))
	for i, field := range fields {
		if !field.Enabled {
			continue
		}
		if field.Position < 1 || field.Position > len(runes) {
			return nil, fmt.Errorf("%w: field %d declares position %d, password has %d characters",
				driver.ErrInvalidPosition, i, field.Position, len(runes))
		}
		writes = append(writes, models.MaskedWrite{
			Index:    i,
			Position: field.Position,
			Char:     string(runes[field.Position-1]),
		})
	}
	return writes, nil
}
