package media

import (
	"fmt"
	"strings"
)

// Transition names a visual transition style for MergeWithTransition.
type Transition string

// Supported transitions.
const (
	TransitionFade        Transition = "fade"
	TransitionSlideLeft   Transition = "slideleft"
	TransitionSlideRight  Transition = "slideright"
	TransitionSlideUp     Transition = "slideup"
	TransitionSlideDown   Transition = "slidedown"
	TransitionWipeLeft    Transition = "wipeleft"
	TransitionWipeRight   Transition = "wiperight"
	TransitionWipeUp      Transition = "wipeup"
	TransitionWipeDown    Transition = "wipedown"
	TransitionDistance    Transition = "distance"
	TransitionFadeBlack   Transition = "fadeblack"
	TransitionFadeWhite   Transition = "fadewhite"
	TransitionRectCrop    Transition = "rectcrop"
	TransitionCircleOpen  Transition = "circleopen"
	TransitionCircleClose Transition = "circleclose"
	TransitionDissolve    Transition = "dissolve"
	TransitionPixelize    Transition = "pixelize"
	TransitionHBlur       Transition = "hblur"
	TransitionWipeTL      Transition = "wipetl"
	TransitionWipeTR      Transition = "wipetr"
	TransitionWipeBL      Transition = "wipebl"
	TransitionWipeBR      Transition = "wipebr"
)

// Transitions lists every supported transition in declaration order.
var Transitions = []Transition{
	TransitionFade,
	TransitionSlideLeft,
	TransitionSlideRight,
	TransitionSlideUp,
	TransitionSlideDown,
	TransitionWipeLeft,
	TransitionWipeRight,
	TransitionWipeUp,
	TransitionWipeDown,
	TransitionDistance,
	TransitionFadeBlack,
	TransitionFadeWhite,
	TransitionRectCrop,
	TransitionCircleOpen,
	TransitionCircleClose,
	TransitionDissolve,
	TransitionPixelize,
	TransitionHBlur,
	TransitionWipeTL,
	TransitionWipeTR,
	TransitionWipeBL,
	TransitionWipeBR,
}

// TransitionMapping selects which table turns a Transition into an xfade keyword.
type TransitionMapping string

const (
	// MappingLegacy reproduces the historical table, where dissolve, pixelize
	// and hblur render as pixelize, hblur and wipetl respectively.
	MappingLegacy TransitionMapping = "legacy"
	// MappingCorrected maps every transition to the xfade keyword of the same name.
	MappingCorrected TransitionMapping = "corrected"
)

// legacyKeywords is the historical xfade table. Do not reorder the shifted
// entries without coordinating with consumers that rely on the old output.
var legacyKeywords = map[Transition]string{
	TransitionFade:        "fade",
	TransitionSlideLeft:   "slideleft",
	TransitionSlideRight:  "slideright",
	TransitionSlideUp:     "slideup",
	TransitionSlideDown:   "slidedown",
	TransitionWipeLeft:    "wipeleft",
	TransitionWipeRight:   "wiperight",
	TransitionWipeUp:      "wipeup",
	TransitionWipeDown:    "wipedown",
	TransitionDistance:    "distance",
	TransitionFadeBlack:   "fadeblack",
	TransitionFadeWhite:   "fadewhite",
	TransitionRectCrop:    "rectcrop",
	TransitionCircleOpen:  "circleopen",
	TransitionCircleClose: "circleclose",
	TransitionDissolve:    "pixelize",
	TransitionPixelize:    "hblur",
	TransitionHBlur:       "wipetl",
	TransitionWipeTL:      "wipetl",
	TransitionWipeTR:      "wipetr",
	TransitionWipeBL:      "wipebl",
	TransitionWipeBR:      "wipebr",
}

// Valid reports whether m names a known mapping table.
func (m TransitionMapping) Valid() bool {
	return m == MappingLegacy || m == MappingCorrected
}

// Valid reports whether t is one of the supported transitions.
func (t Transition) Valid() bool {
	_, ok := legacyKeywords[t]
	return ok
}

// Keyword returns the xfade transition keyword for t under mapping m.
// An empty or unknown mapping behaves as MappingLegacy.
func (t Transition) Keyword(m TransitionMapping) (string, error) {
	kw, ok := legacyKeywords[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, string(t))
	}
	if m == MappingCorrected {
		return string(t), nil
	}
	return kw, nil
}

// ParseTransition parses a transition name case-insensitively.
// Dashes and underscores are ignored, so "slide-left" and "SLIDE_LEFT" both work.
func ParseTransition(s string) (Transition, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	t := Transition(norm)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, s)
	}
	return t, nil
}
