package nav

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/iono-api/internal/domain"
)

func TestReadCoefficients_RINEX2(t *testing.T) {
	f, err := os.Open("../../../../testdata/brdc0010.18n")
	require.NoError(t, err)
	defer f.Close()

	coeffs, err := ReadCoefficients(f)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.1118e-07, -0.7451e-08, -0.5960e-07, 0.1192e-06}, coeffs.Alpha[:], 1e-20)
	assert.InDeltaSlice(t, []float64{0.9011e+05, -0.6554e+05, -0.1311e+06, 0.4588e+06}, coeffs.Beta[:], 1e-6)
}

func TestReadCoefficients_RINEX3(t *testing.T) {
	f, err := os.Open("../../../../testdata/brdm0010.18p")
	require.NoError(t, err)
	defer f.Close()

	coeffs, err := ReadCoefficients(f)
	require.NoError(t, err)

	// The Galileo record must not be taken for GPS alpha.
	assert.InDeltaSlice(t, []float64{1.1176e-08, -7.4506e-09, -5.9605e-08, 1.1921e-07}, coeffs.Alpha[:], 1e-20)
	assert.InDeltaSlice(t, []float64{9.0112e+04, -6.5536e+04, -1.3107e+05, 4.5875e+05}, coeffs.Beta[:], 1e-6)
}

func TestReadCoefficients_LowercaseExponent(t *testing.T) {
	content := "    0.1118d-07 -0.7451d-08 -0.5960d-07  0.1192d-06          ION ALPHA\n" +
		"    0.9011d+05 -0.6554d+05 -0.1311d+06  0.4588d+06          ION BETA\n"

	coeffs, err := ReadCoefficients(strings.NewReader(content))
	require.NoError(t, err)
	assert.InDelta(t, 0.1192e-06, coeffs.Alpha[3], 1e-20)
	assert.InDelta(t, 0.4588e+06, coeffs.Beta[3], 1e-6)
}

func TestReadCoefficients_FirstRecordWins(t *testing.T) {
	content := "    0.1000D-07  0.0000D+00  0.0000D+00  0.0000D+00          ION ALPHA\n" +
		"    0.2000D-07  0.0000D+00  0.0000D+00  0.0000D+00          ION ALPHA\n" +
		"    0.7200D+05  0.0000D+00  0.0000D+00  0.0000D+00          ION BETA\n"

	coeffs, err := ReadCoefficients(strings.NewReader(content))
	require.NoError(t, err)
	assert.InDelta(t, 0.1e-07, coeffs.Alpha[0], 1e-20)
}

func TestReadCoefficients_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"missing beta", "    0.1118D-07 -0.7451D-08 -0.5960D-07  0.1192D-06          ION ALPHA\n"},
		{"missing alpha", "    0.9011D+05 -0.6554D+05 -0.1311D+06  0.4588D+06          ION BETA\n"},
		{"short alpha", "    0.1118D-07 -0.7451D-08 -0.5960D-07                      ION ALPHA\n" +
			"    0.9011D+05 -0.6554D+05 -0.1311D+06  0.4588D+06          ION BETA\n"},
		{"beta after header", "    0.1118D-07 -0.7451D-08 -0.5960D-07  0.1192D-06          ION ALPHA\n" +
			"                                                            END OF HEADER\n" +
			"    0.9011D+05 -0.6554D+05 -0.1311D+06  0.4588D+06          ION BETA\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCoefficients(strings.NewReader(tt.content))
			assert.ErrorIs(t, err, domain.ErrMalformedInput)
		})
	}
}
