// conf/validate.go settings validation
package conf

import (
	"github.com/switchbacklabs/towers-tt/internal/errors"
)

// ValidateSettings checks the loaded settings for structural problems that
// would make the engine misbehave at runtime.
func ValidateSettings(settings *Settings) error {
	if err := validateSegments(&settings.Segments); err != nil {
		return err
	}
	if err := validateImport(&settings.Import); err != nil {
		return err
	}
	if err := validateOutput(&settings.Output); err != nil {
		return err
	}
	if err := validateStrava(&settings.Strava); err != nil {
		return err
	}
	return nil
}

func validateSegments(s *SegmentsSettings) error {
	if s.MainID == 0 {
		return errors.Newf("main segment id is not configured").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	// Bonus group arities are fixed by the course definition.
	if len(s.ClimbIDs) != 2 {
		return errors.Newf("climb group must contain exactly 2 segment ids, got %d", len(s.ClimbIDs)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("climb_ids", len(s.ClimbIDs)).
			Build()
	}
	if len(s.DescentIDs) != 3 {
		return errors.Newf("descent group must contain exactly 3 segment ids, got %d", len(s.DescentIDs)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("descent_ids", len(s.DescentIDs)).
			Build()
	}
	return nil
}

func validateImport(s *ImportSettings) error {
	if _, err := s.StartTime(); err != nil {
		return errors.Newf("invalid import start date %q: %w", s.StartDate, err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateOutput(s *OutputSettings) error {
	if s.SQLite.Enabled && s.MySQL.Enabled {
		return errors.Newf("only one database backend may be enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !s.SQLite.Enabled && !s.MySQL.Enabled {
		return errors.Newf("no database backend is enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		return errors.Newf("sqlite path is not configured").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateStrava(s *StravaSettings) error {
	if s.BaseURL == "" {
		return errors.Newf("strava base url is not configured").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Retry.MaxAttempts < 1 {
		return errors.Newf("retry max attempts must be at least 1, got %d", s.Retry.MaxAttempts).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.PerPage < 1 || s.PerPage > 200 {
		return errors.Newf("per page must be between 1 and 200, got %d", s.PerPage).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
