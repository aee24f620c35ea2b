// Package partial implements scoped ownership of a temp file written
// during a download, released according to how much progress was made
// before the scope ended.
//
// Grounded on gokr-rsync's internal/receiver use of renameio for
// atomic destination commits; generalized here to also cover the
// partial-transfer keep-for-resume policy.
package partial

import (
	"os"
	"time"

	"github.com/google/renameio/v2"
)

// partialAge is how long an acquisition must live before an
// incomplete transfer is still worth keeping for a future resume.
const partialAge = 10 * time.Second

// Keeper owns one temp-to-destination commit/discard decision.
type Keeper struct {
	tempPath string
	destPath string
	destMode os.FileMode

	acquired time.Time
	mtimeSet bool
	mtime    time.Time
}

// Acquire starts tracking a temp file that will become destPath on
// success.
func Acquire(tempPath, destPath string, destMode os.FileMode) *Keeper {
	return &Keeper{
		tempPath: tempPath,
		destPath: destPath,
		destMode: destMode,
		acquired: time.Now(),
	}
}

// SetModTime records that the download completed and dst should carry
// this modification time once committed.
func (k *Keeper) SetModTime(t time.Time) {
	k.mtimeSet = true
	k.mtime = t
}

// Release must run on every exit path: normal completion, error, or
// cancellation. It renames the temp file into place when the
// download finished, also renames it into place (chmod'd and
// timestamped with the current time) when enough progress was made to
// be worth resuming, or deletes it otherwise.
func (k *Keeper) Release() error {
	switch {
	case k.mtimeSet:
		return k.commit(k.mtime)
	case time.Since(k.acquired) > partialAge:
		return k.commit(time.Now())
	default:
		err := os.Remove(k.tempPath)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
}

func (k *Keeper) commit(mtime time.Time) error {
	if err := os.Chmod(k.tempPath, k.destMode); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Chtimes(k.tempPath, mtime, mtime); err != nil && !os.IsNotExist(err) {
		return err
	}
	return renameio.Rename(k.tempPath, k.destPath)
}
