package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:                "0 bytes",
		1023:             "1023 bytes",
		1024:             "1.0 KB",
		1536:             "1.5 KB",
		5 * 1024 * 1024:  "5.0 MB",
		3 << 30:          "3.0 GB",
		2 << 40:          "2.0 TB",
		(2 << 40) * 1024: "2048.0 TB",
	}
	for n, want := range tests {
		assert.Equal(t, want, HumanBytes(n), n)
	}
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{time.Minute, "1 min ago"},
		{59 * time.Minute, "59 mins ago"},
		{time.Hour, "1 hour ago"},
		{23 * time.Hour, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, TimeAgo(now.Add(-tc.age), now), tc.age.String())
	}
	assert.Equal(t, "unknown", TimeAgo(time.Time{}, now))
}
