package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/maauso/mediaops/internal/media"
)

// Errors returned while turning a submission into a media request.
var (
	// ErrUnknownOperation is returned for an operation name outside Operations.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidPayload is returned when the payload does not decode into the operation's request.
	ErrInvalidPayload = errors.New("invalid payload")
)

// request is implemented by every media request type.
type request interface {
	Outputs() []string
}

func decode[T request](payload json.RawMessage) (request, error) {
	var req T
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return req, nil
}

// decodeRequest parses payload into the request type op expects.
func decodeRequest(op Operation, payload json.RawMessage) (request, error) {
	switch op {
	case OpConcatenate:
		return decode[media.ConcatenateRequest](payload)
	case OpSplit:
		return decode[media.SplitRequest](payload)
	case OpTransition:
		return decode[media.TransitionRequest](payload)
	case OpOverlay:
		return decode[media.ImageOverlayRequest](payload)
	case OpSolidColor:
		return decode[media.SolidColorRequest](payload)
	case OpLUT:
		return decode[media.LUTRequest](payload)
	case OpText:
		return decode[media.TextOverlayRequest](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, string(op))
	}
}

// placeOutputs moves relative output paths into dir. Absolute paths are kept.
func placeOutputs(req request, dir string) request {
	under := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	switch r := req.(type) {
	case media.ConcatenateRequest:
		r.Output = under(r.Output)
		return r
	case media.SplitRequest:
		r.Before = under(r.Before)
		r.After = under(r.After)
		return r
	case media.TransitionRequest:
		r.Output = under(r.Output)
		return r
	case media.ImageOverlayRequest:
		r.Output = under(r.Output)
		return r
	case media.SolidColorRequest:
		r.Output = under(r.Output)
		return r
	case media.LUTRequest:
		r.Output = under(r.Output)
		return r
	case media.TextOverlayRequest:
		r.Output = under(r.Output)
		return r
	default:
		return req
	}
}

// execute runs req on p.
func execute(ctx context.Context, p media.Processor, req request) error {
	switch r := req.(type) {
	case media.ConcatenateRequest:
		return p.Concatenate(ctx, r)
	case media.SplitRequest:
		return p.Split(ctx, r)
	case media.TransitionRequest:
		return p.MergeWithTransition(ctx, r)
	case media.ImageOverlayRequest:
		return p.OverlayImage(ctx, r)
	case media.SolidColorRequest:
		return p.CreateSolidColorImage(ctx, r)
	case media.LUTRequest:
		return p.ApplyLUT(ctx, r)
	case media.TextOverlayRequest:
		return p.AddCenteredText(ctx, r)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownOperation, req)
	}
}
