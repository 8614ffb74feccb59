package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/pm25-intent/internal/airquality"
	"github.com/smukkama/pm25-intent/internal/i18n"
	"github.com/smukkama/pm25-intent/internal/location"
	"github.com/smukkama/pm25-intent/internal/pm25"
)

// CoordinateSource is satisfied by *location.Provider
type CoordinateSource interface {
	GetCoordinate(ctx context.Context) (location.Coordinate, error)
}

// Result is a successful evaluation
type Result struct {
	Coordinate location.Coordinate
	Value      float64
	Category   airquality.Category
	Sentence   string
}

// Action is the PM2.5 intent: locate, fetch, normalize, classify, phrase
type Action struct {
	locator CoordinateSource
	fetcher pm25.Fetcher
	profile airquality.Profile
	locale  i18n.Locale
	logger  *slog.Logger
}

// New creates an action. A nil logger means slog.Default().
func New(locator CoordinateSource, fetcher pm25.Fetcher, profile airquality.Profile, locale i18n.Locale, logger *slog.Logger) *Action {
	if logger == nil {
		logger = slog.Default()
	}
	return &Action{
		locator: locator,
		fetcher: fetcher,
		profile: profile,
		locale:  locale,
		logger:  logger,
	}
}

// Evaluate runs the pipeline and returns the first failure unchanged
func (a *Action) Evaluate(ctx context.Context) (Result, error) {
	coord, err := a.locator.GetCoordinate(ctx)
	if err != nil {
		return Result{}, err
	}

	r, err := a.fetcher.FetchReading(ctx, coord.Latitude, coord.Longitude)
	if err != nil {
		return Result{Coordinate: coord}, err
	}

	value := r.Value()
	category := a.profile.Classify(value)
	return Result{
		Coordinate: coord,
		Value:      value,
		Category:   category,
		Sentence:   fmt.Sprintf(resultTemplate.In(a.locale), FormatValue(value), category.Label(a.locale)),
	}, nil
}

// Run always returns a sentence for the user; errors are logged, never shown
func (a *Action) Run(ctx context.Context) string {
	logger := a.logger.With("invocation_id", uuid.New().String(), "locale", a.locale, "profile", a.profile.Name)
	start := time.Now()

	res, err := a.Evaluate(ctx)
	if err == nil {
		logger.Info("air quality reported",
			"coordinate", res.Coordinate.String(),
			"pm25", res.Value,
			"category", res.Category.Key,
			"duration", time.Since(start),
		)
		return res.Sentence
	}

	var locErr *location.LocationError
	var apiErr *pm25.Error
	switch {
	case errors.As(err, &locErr):
		logger.Warn("location unavailable", "error", err, "duration", time.Since(start))
		return LocationFailureSentence(a.locale)
	case errors.As(err, &apiErr):
		logger.Warn("pm25 request failed",
			"kind", apiErr.Kind,
			"reason", apiErr.Reason,
			"error", err,
			"duration", time.Since(start),
		)
		return ErrorSentence(a.locale, apiErr)
	default:
		logger.Error("air quality intent failed", "error", err, "duration", time.Since(start))
		return GenericFailureSentence(a.locale)
	}
}
