package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LUT identifies one of the bundled .cube color lookup tables.
type LUT string

// Bundled LUTs.
const (
	LUTPictureFXLeicaM8BW125 LUT = "picturefx-leica-m8-bw-125"
	LUTRetroWarm             LUT = "retro-warm"
)

var lutFiles = map[LUT]string{
	LUTPictureFXLeicaM8BW125: "PictureFX-LeicaM8-BW-125.cube",
	LUTRetroWarm:             "Retro-Warm.cube",
}

// LUTs lists every bundled LUT.
var LUTs = []LUT{LUTPictureFXLeicaM8BW125, LUTRetroWarm}

// Filename returns the .cube file name l refers to.
func (l LUT) Filename() (string, error) {
	name, ok := lutFiles[l]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLUT, string(l))
	}
	return name, nil
}

// Path resolves l against dir. An empty dir resolves relative to the working directory.
func (l LUT) Path(dir string) (string, error) {
	name, err := l.Filename()
	if err != nil {
		return "", err
	}
	if dir == "" {
		return name, nil
	}
	return filepath.Join(dir, name), nil
}

// ParseLUT accepts either the identifier or the .cube file name, case-insensitively.
func ParseLUT(s string) (LUT, error) {
	for l, name := range lutFiles {
		if strings.EqualFold(s, string(l)) || strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLUT, s)
}
