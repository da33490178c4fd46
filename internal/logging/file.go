package logging

import (
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

const (
	rotationTime = 24 * time.Hour
	maxAge       = 7 * 24 * time.Hour
)

// openRotating opens path.YYYYMMDD for appending, switching files daily and
// pruning those older than a week. path links to the active file.
func openRotating(path string) (*rotatelogs.RotateLogs, error) {
	return rotatelogs.New(path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithRotationTime(rotationTime),
		rotatelogs.WithMaxAge(maxAge),
	)
}
