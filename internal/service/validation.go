package service

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"bengkel/internal/domain"
	"bengkel/internal/models"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields under the names clients send
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt limits bytes, while max counts runes
	_ = v.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= models.MaxPasswordBytes
	})
	return v
}

// validateStruct runs the struct tags and converts failures into a
// *domain.ValidationError listing the offending fields.
func validateStruct(v *validator.Validate, s interface{}, message string) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return domain.NewValidationError(message, fields...)
}

func isEmail(v *validator.Validate, email string) bool {
	return v.Var(email, "required,email") == nil
}

func isVehicleType(t models.VehicleType) bool {
	switch t {
	case models.VehicleMatic, models.VehicleBebek, models.VehicleSport:
		return true
	}
	return false
}

// schedule checks booking dates and slots against shop time.
type schedule struct {
	slots          map[string]bool
	maxAdvanceDays int
	loc            *time.Location
}

func newSchedule(slots []string, maxAdvanceDays int, loc *time.Location) schedule {
	set := make(map[string]bool, len(slots))
	for _, slot := range slots {
		set[slot] = true
	}
	if loc == nil {
		loc = time.UTC
	}
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	return schedule{slots: set, maxAdvanceDays: maxAdvanceDays, loc: loc}
}

// validDate accepts YYYY-MM-DD from today up to maxAdvanceDays ahead.
func (s schedule) validDate(tanggal string, now time.Time) bool {
	day, err := time.ParseInLocation(models.DateLayout, tanggal, s.loc)
	if err != nil {
		return false
	}
	local := now.In(s.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	if day.Before(today) {
		return false
	}
	return !day.After(today.AddDate(0, 0, s.maxAdvanceDays))
}

func (s schedule) validSlot(waktu string) bool {
	return s.slots[waktu]
}

func trimPtr(p *string) {
	if p != nil {
		*p = strings.TrimSpace(*p)
	}
}
