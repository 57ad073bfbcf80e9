package fetch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.ngs.io/iono-api/internal/domain"
)

var (
	// codg0010.18i, brdc0010.18n.Z
	shortName = regexp.MustCompile(`^[A-Za-z0-9]{4}(\d{3})[0-9a-xA-X]\.(\d{2})[A-Za-z]`)
	// COD0OPSFIN_20180010000_01D_01H_GIM.INX.gz
	longName = regexp.MustCompile(`_(\d{4})(\d{3})\d{4}_`)
)

// ResolvePath expands a remote path template for the named file.
//
// Supported placeholders are {name}, {yyyy}, {yy} and {ddd}. The date
// is taken from either the short (ssssdddf.yyt) or the long archive naming
// convention.
func ResolvePath(template, name string) (string, error) {
	year, doy, err := archiveDate(name)
	if err != nil && needsDate(template) {
		return "", err
	}

	r := strings.NewReplacer(
		"{name}", name,
		"{yyyy}", fmt.Sprintf("%04d", year),
		"{yy}", fmt.Sprintf("%02d", year%100),
		"{ddd}", fmt.Sprintf("%03d", doy),
	)
	return r.Replace(template), nil
}

func needsDate(template string) bool {
	for _, p := range []string{"{yyyy}", "{yy}", "{ddd}"} {
		if strings.Contains(template, p) {
			return true
		}
	}
	return false
}

func archiveDate(name string) (year, doy int, err error) {
	if m := longName.FindStringSubmatch(name); m != nil {
		year, _ = strconv.Atoi(m[1])
		doy, _ = strconv.Atoi(m[2])
		return year, doy, checkDOY(name, doy)
	}
	if m := shortName.FindStringSubmatch(name); m != nil {
		doy, _ = strconv.Atoi(m[1])
		yy, _ := strconv.Atoi(m[2])
		// Two-digit years follow the RINEX pivot: 80-99 are 19xx.
		if yy >= 80 {
			return 1900 + yy, doy, checkDOY(name, doy)
		}
		return 2000 + yy, doy, checkDOY(name, doy)
	}
	return 0, 0, fmt.Errorf("%w: cannot derive archive date from %q", domain.ErrValidation, name)
}

func checkDOY(name string, doy int) error {
	if doy < 1 || doy > 366 {
		return fmt.Errorf("%w: day of year %d in %q", domain.ErrValidation, doy, name)
	}
	return nil
}
