package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Job dispatcher fault classes. Each maps to the same user-facing failure
// message; the distinction is for logs and tests.
var (
	ErrFetchFailed      = errors.New("failed to fetch source image")
	ErrPredictionFailed = errors.New("prediction failed")
	ErrPersistFailed    = errors.New("failed to persist result image")
)

// MediaFetcher resolves an opaque media reference into raw image bytes
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaRef string) ([]byte, error)
}

// PredictRequest carries the two source images and the model parameters for
// one try-on prediction.
type PredictRequest struct {
	PersonImage        []byte
	GarmentImage       []byte
	GarmentDescription string
	UseAutoMask        bool
	UseCrop            bool
	DenoiseSteps       int
	Seed               int
}

// Predictor runs one try-on prediction and returns the result image bytes
type Predictor interface {
	Predict(ctx context.Context, req PredictRequest) ([]byte, error)
}

// ImageStore persists result images under the static-serving location
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// TryOnService is the job dispatcher: it bridges a session's two image
// references to the external prediction engine and persists the result where
// the static endpoint can serve it. No stage retries; one failure yields one
// failure outcome upstream.
type TryOnService struct {
	fetcher       MediaFetcher
	predictor     Predictor
	images        ImageStore
	publicBaseURL string
	timeout       time.Duration

	garmentDescription string
	denoiseSteps       int
	seed               int
}

// NewTryOnService creates a new try-on job dispatcher
func NewTryOnService(
	fetcher MediaFetcher,
	predictor Predictor,
	images ImageStore,
	publicBaseURL string,
	timeout time.Duration,
	garmentDescription string,
	denoiseSteps, seed int,
) *TryOnService {
	return &TryOnService{
		fetcher:            fetcher,
		predictor:          predictor,
		images:             images,
		publicBaseURL:      publicBaseURL,
		timeout:            timeout,
		garmentDescription: garmentDescription,
		denoiseSteps:       denoiseSteps,
		seed:               seed,
	}
}

// Run produces a try-on result from a person image and a garment image and
// returns the publicly reachable URL of the persisted result.
func (s *TryOnService) Run(ctx context.Context, personRef, garmentRef string) (string, error) {
	person, err := s.fetcher.Fetch(ctx, personRef)
	if err != nil {
		return "", fmt.Errorf("%w: person image: %v", ErrFetchFailed, err)
	}
	garment, err := s.fetcher.Fetch(ctx, garmentRef)
	if err != nil {
		return "", fmt.Errorf("%w: garment image: %v", ErrFetchFailed, err)
	}

	predictCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	result, err := s.predictor.Predict(predictCtx, PredictRequest{
		PersonImage:        person,
		GarmentImage:       garment,
		GarmentDescription: s.garmentDescription,
		UseAutoMask:        true,
		UseCrop:            false,
		DenoiseSteps:       s.denoiseSteps,
		Seed:               s.seed,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}
	if len(result) == 0 {
		return "", fmt.Errorf("%w: empty result", ErrPredictionFailed)
	}
	log.Debug().Dur("elapsed", time.Since(started)).Msg("Prediction finished")

	// The service may return JPEG or WebP-ish bytes; re-encode so the
	// persisted object matches its .png key and content type.
	encoded, err := encodePNG(result)
	if err != nil {
		return "", fmt.Errorf("%w: invalid result image: %v", ErrPredictionFailed, err)
	}

	key := uuid.New().String() + ".png"
	if err := s.images.Put(ctx, key, encoded, "image/png"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	return fmt.Sprintf("%s/static/%s", s.publicBaseURL, key), nil
}

func encodePNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
