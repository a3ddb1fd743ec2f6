package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		want   Progress
		wantOK bool
	}{
		{
			name:   "receiving objects",
			line:   "Receiving objects:  45% (9/20)",
			want:   Progress{Percentage: 45, Stage: "Receiving objects", Details: "Receiving objects:  45% (9/20)"},
			wantOK: true,
		},
		{
			name: "remote prefix",
			line: "remote: Counting objects: 100% (20/20), done.",
			want: Progress{
				Percentage: 100,
				Stage:      "Counting objects",
				Details:    "Counting objects: 100% (20/20), done.",
			},
			wantOK: true,
		},
		{
			name:   "percentage above 100 is clamped",
			line:   "Resolving deltas: 120%",
			want:   Progress{Percentage: 100, Stage: "Resolving deltas", Details: "Resolving deltas: 120%"},
			wantOK: true,
		},
		{
			name:   "no percentage",
			line:   "remote: Enumerating objects: 20, done.",
			want:   Progress{Percentage: -1, Stage: "Enumerating objects", Details: "Enumerating objects: 20, done."},
			wantOK: true,
		},
		{
			name:   "free text",
			line:   "  done  ",
			want:   Progress{Percentage: -1, Details: "done"},
			wantOK: true,
		},
		{
			name: "blank",
			line: "   ",
		},
		{
			name: "only remote prefix",
			line: "remote: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseProgress(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestProgressWriter(t *testing.T) {
	t.Parallel()

	var reports []Progress
	writer := NewProgressWriter(func(p Progress) {
		reports = append(reports, p)
	})

	chunks := []string{
		"Counting objects:  10% (1/10)\rCounting",
		" objects: 100% (10/10), done.\n",
		"\n",
		"Receiving objects:  50% (5/10)",
	}
	for _, chunk := range chunks {
		n, err := writer.Write([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}

	require.Len(t, reports, 2)
	assert.Equal(t, 10, reports[0].Percentage)
	assert.Equal(t, 100, reports[1].Percentage)
	assert.Equal(t, "Counting objects", reports[1].Stage)

	writer.Flush()
	require.Len(t, reports, 3)
	assert.Equal(t, "Receiving objects", reports[2].Stage)
	assert.Equal(t, 50, reports[2].Percentage)

	// Nothing buffered after a flush
	writer.Flush()
	assert.Len(t, reports, 3)
}

func TestProgressWriter_NilCallback(t *testing.T) {
	t.Parallel()

	writer := NewProgressWriter(nil)
	n, err := writer.Write([]byte("Receiving objects: 1%\n"))
	require.NoError(t, err)
	assert.Equal(t, 22, n)
	writer.Flush()
}
