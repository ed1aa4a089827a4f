package cardgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	sum, err := Checksum("4111111111111111")
	require.NoError(t, err)
	require.Equal(t, 0, sum)

	sum, err = Checksum("4111111111111112")
	require.NoError(t, err)
	require.Equal(t, 1, sum)

	_, err = Checksum("4111-1111")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Checksum("")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"4111111111111111", true},
		{"5555555555554444", true},
		{"378282246310005", true},
		{"4111111111111112", false},
		{"123", false},
		{"41111111111111111111", false},
		{"", false},
		{"abcd", false},
		{"4111 1111 1111 1111", false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			require.Equal(t, tt.want, IsValid(tt.number))
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Run("valid numbers for every supported length", func(t *testing.T) {
		for length := MinPANLength; length <= MaxPANLength; length++ {
			for i := 0; i < 20; i++ {
				n, err := Generate("411111", length)
				require.NoError(t, err)
				require.Len(t, n, length)
				require.True(t, strings.HasPrefix(n, "411111"))
				require.True(t, IsValid(n), n)
			}
		}
	})

	t.Run("prefix filling everything but the check digit", func(t *testing.T) {
		n, err := Generate("411111111111111", 16)
		require.NoError(t, err)
		require.Equal(t, "4111111111111111", n)
	})

	t.Run("rejects bad prefix", func(t *testing.T) {
		_, err := Generate("", 16)
		require.ErrorIs(t, err, ErrInvalidPrefix)

		_, err = Generate("41a111", 16)
		require.ErrorIs(t, err, ErrInvalidPrefix)
	})

	t.Run("rejects bad length", func(t *testing.T) {
		_, err := Generate("411111", 12)
		require.ErrorIs(t, err, ErrInvalidLength)

		_, err = Generate("411111", 20)
		require.ErrorIs(t, err, ErrInvalidLength)

		_, err = Generate("4111111111111111", 16)
		require.ErrorIs(t, err, ErrInvalidLength)
	})
}

func TestGenerateBatch(t *testing.T) {
	numbers, err := GenerateBatch("400000", 5, 16)
	require.NoError(t, err)
	require.Len(t, numbers, 5)
	for _, n := range numbers {
		require.True(t, IsValid(n))
		require.True(t, strings.HasPrefix(n, "400000"))
	}

	_, err = GenerateBatch("400000", 0, 16)
	require.ErrorIs(t, err, ErrInvalidCount)
}

func TestGenerateWithSuffix(t *testing.T) {
	for _, suffix := range []string{"1234", "0000", "9999", "4242", "1"} {
		for length := MinPANLength; length <= MaxPANLength; length++ {
			n, err := GenerateWithSuffix("411111", suffix, length)
			require.NoError(t, err)
			require.Len(t, n, length)
			require.True(t, strings.HasPrefix(n, "411111"))
			require.True(t, strings.HasSuffix(n, suffix))
			require.True(t, IsValid(n), n)
		}
	}

	_, err := GenerateWithSuffix("411111", "12a4", 16)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateWithSuffix("411111111111", "1234", 16)
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestRandomDigits(t *testing.T) {
	d, err := randomDigits(1000)
	require.NoError(t, err)
	require.Len(t, d, 1000)
	require.True(t, IsDigits(d))

	d, err = randomDigits(0)
	require.NoError(t, err)
	require.Empty(t, d)
}
