package capture

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// CompatibleFormats cross-products every FourCC the backend offers with its
// resolutions and frame rates. Duplicates are dropped. The result is in
// backend order and is not sorted; use SortFormats when order matters.
func CompatibleFormats(q FormatQuerier) ([]CameraFormat, error) {
	fourccs, err := q.QueryFourCCs()
	if err != nil {
		return nil, backendError("query fourccs", err)
	}
	seen := make(map[CameraFormat]struct{})
	var out []CameraFormat
	for _, fourcc := range fourccs {
		modes, err := q.QueryFormats(fourcc)
		if err != nil {
			return nil, backendError("query formats", err)
		}
		for res, rates := range modes {
			for _, rate := range rates {
				f := CameraFormat{Resolution: res, Format: fourcc, FrameRate: normalizeRate(rate)}
				if _, dup := seen[f]; dup {
					continue
				}
				seen[f] = struct{}{}
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func normalizeRate(r FrameRate) FrameRate {
	if n, err := NewFrameRate(r.Numerator, r.Denominator); err == nil {
		return n
	}
	return r
}

// CompareFormats orders formats by FourCC code, then resolution, then frame
// rate.
func CompareFormats(a, b CameraFormat) int {
	if c := strings.Compare(a.Format.Code(), b.Format.Code()); c != 0 {
		return c
	}
	if c := a.Resolution.Compare(b.Resolution); c != 0 {
		return c
	}
	return a.FrameRate.Compare(b.FrameRate)
}

// SortFormats sorts formats in place with CompareFormats and returns them.
func SortFormats(formats []CameraFormat) []CameraFormat {
	slices.SortFunc(formats, CompareFormats)
	return formats
}

// RequestKind selects how a FormatRequest picks among candidates.
type RequestKind string

// Request kinds.
const (
	RequestNone              RequestKind = "none"
	RequestExact             RequestKind = "exact"
	RequestClosest           RequestKind = "closest"
	RequestHighestResolution RequestKind = "highest-resolution"
	RequestHighestFrameRate  RequestKind = "highest-framerate"
)

// FormatRequest describes the format a caller wants when a session opens.
// FourCCs restricts and ranks acceptable encodings; empty accepts any.
type FormatRequest struct {
	Kind    RequestKind
	Target  CameraFormat
	FourCCs []FrameFormat
}

// NoFormatRequest leaves the device in whatever format it already has.
func NoFormatRequest() FormatRequest {
	return FormatRequest{Kind: RequestNone}
}

// ExactFormat requests exactly f.
func ExactFormat(f CameraFormat) FormatRequest {
	return FormatRequest{Kind: RequestExact, Target: f}
}

// ClosestFormat requests the candidate nearest to f.
func ClosestFormat(f CameraFormat, fourccs ...FrameFormat) FormatRequest {
	return FormatRequest{Kind: RequestClosest, Target: f, FourCCs: fourccs}
}

// HighestResolution requests the largest frame. A non-zero rate restricts
// candidates to that rate.
func HighestResolution(rate FrameRate, fourccs ...FrameFormat) FormatRequest {
	return FormatRequest{Kind: RequestHighestResolution, Target: CameraFormat{FrameRate: rate}, FourCCs: fourccs}
}

// HighestFrameRate requests the fastest rate. A non-zero resolution restricts
// candidates to that size.
func HighestFrameRate(res Resolution, fourccs ...FrameFormat) FormatRequest {
	return FormatRequest{Kind: RequestHighestFrameRate, Target: CameraFormat{Resolution: res}, FourCCs: fourccs}
}

// ParseFormatRequest parses "none", "exact:1280x720@30 MJPG",
// "closest:640x480@15", "highest-resolution[:FPS]" or
// "highest-framerate[:WxH]".
func ParseFormatRequest(s string) (FormatRequest, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	arg = strings.TrimSpace(arg)
	switch RequestKind(strings.ToLower(kind)) {
	case RequestNone, "":
		return NoFormatRequest(), nil
	case RequestExact:
		f, err := ParseCameraFormat(arg)
		if err != nil {
			return FormatRequest{}, err
		}
		return ExactFormat(f), nil
	case RequestClosest:
		f, err := ParseCameraFormat(arg)
		if err != nil {
			return FormatRequest{}, err
		}
		return ClosestFormat(f), nil
	case RequestHighestResolution:
		var rate FrameRate
		if arg != "" {
			r, err := ParseFrameRate(arg)
			if err != nil {
				return FormatRequest{}, err
			}
			rate = r
		}
		return HighestResolution(rate), nil
	case RequestHighestFrameRate:
		var res Resolution
		if arg != "" {
			r, err := ParseResolution(arg)
			if err != nil {
				return FormatRequest{}, err
			}
			res = r
		}
		return HighestFrameRate(res), nil
	}
	return FormatRequest{}, NewError(ErrInvalidFormat, "parse", fmt.Sprintf("unknown format request %q", s))
}

func (r FormatRequest) String() string {
	switch r.Kind {
	case RequestExact, RequestClosest:
		return fmt.Sprintf("%s:%s", r.Kind, r.Target)
	case "":
		return string(RequestNone)
	}
	return string(r.Kind)
}

// fourccRank returns the preference position of f, or -1 when f is not
// acceptable.
func (r FormatRequest) fourccRank(f FrameFormat) int {
	if len(r.FourCCs) == 0 {
		return 0
	}
	return slices.Index(r.FourCCs, f)
}

// Resolve picks one candidate. The choice does not depend on candidate order.
// RequestNone resolves to nothing and returns ErrInvalidFormat; sessions skip
// negotiation for it.
func (r FormatRequest) Resolve(candidates []CameraFormat) (CameraFormat, error) {
	pool := make([]CameraFormat, 0, len(candidates))
	for _, c := range candidates {
		if r.Kind == RequestExact || r.fourccRank(c.Format) >= 0 {
			pool = append(pool, c)
		}
	}
	SortFormats(pool)

	var (
		best  CameraFormat
		found bool
	)
	pick := func(c CameraFormat, better func(a, b CameraFormat) int) {
		if !found || better(c, best) > 0 {
			best, found = c, true
		}
	}

	switch r.Kind {
	case RequestExact:
		if slices.Contains(pool, r.Target) {
			return r.Target, nil
		}
	case RequestClosest:
		for _, c := range pool {
			pick(c, func(a, b CameraFormat) int { return cmp.Compare(r.distance(b), r.distance(a)) })
		}
	case RequestHighestResolution:
		for _, c := range pool {
			if !r.Target.FrameRate.IsZero() && c.FrameRate.Compare(r.Target.FrameRate) != 0 {
				continue
			}
			pick(c, func(a, b CameraFormat) int {
				if d := a.Resolution.Compare(b.Resolution); d != 0 {
					return d
				}
				if d := a.FrameRate.Compare(b.FrameRate); d != 0 {
					return d
				}
				return cmp.Compare(r.fourccRank(b.Format), r.fourccRank(a.Format))
			})
		}
	case RequestHighestFrameRate:
		for _, c := range pool {
			if !r.Target.Resolution.IsZero() && c.Resolution != r.Target.Resolution {
				continue
			}
			pick(c, func(a, b CameraFormat) int {
				if d := a.FrameRate.Compare(b.FrameRate); d != 0 {
					return d
				}
				if d := a.Resolution.Compare(b.Resolution); d != 0 {
					return d
				}
				return cmp.Compare(r.fourccRank(b.Format), r.fourccRank(a.Format))
			})
		}
	default:
		return CameraFormat{}, NewError(ErrInvalidFormat, "resolve", "no format requested")
	}
	if !found {
		return CameraFormat{}, NewError(ErrInvalidFormat, "resolve", fmt.Sprintf("no compatible format satisfies %s", r))
	}
	return best, nil
}

// distance scores how far c is from the target. Lower is closer. FourCC
// preference dominates, then pixel area, then frame rate.
func (r FormatRequest) distance(c CameraFormat) float64 {
	rank := r.fourccRank(c.Format)
	if len(r.FourCCs) == 0 && c.Format != r.Target.Format {
		rank = 1
	}
	area := float64(c.Resolution.Area()) - float64(r.Target.Resolution.Area())
	if area < 0 {
		area = -area
	}
	rate := c.FrameRate.Float() - r.Target.FrameRate.Float()
	if rate < 0 {
		rate = -rate
	}
	return float64(rank)*1e15 + area*1e3 + rate
}
