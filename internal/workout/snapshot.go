package workout

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/meltforce/liftlog/internal/models"
)

// BuildSetsSnapshot derives a performance's cached set list from its set
// records. The result depends only on the records, never on a previous
// snapshot, apart from the version stamp.
func BuildSetsSnapshot(records []models.SetRecord, version int64) models.SetsSnapshot {
	sets := make([]models.SetEntry, 0, len(records))
	for _, r := range records {
		sets = append(sets, models.SetEntry{SetNumber: r.SetNumber, Reps: r.Reps, Weight: r.Weight})
	}
	slices.SortFunc(sets, func(a, b models.SetEntry) int { return a.SetNumber - b.SetNumber })
	return models.SetsSnapshot{
		Version:  version,
		Checksum: SetsChecksum(sets),
		Sets:     sets,
	}
}

// SetsChecksum fingerprints an ordered set list.
func SetsChecksum(sets []models.SetEntry) string {
	var b strings.Builder
	for _, s := range sets {
		b.WriteString(strconv.Itoa(s.SetNumber))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(s.Reps))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(s.Weight, 'f', 2, 64))
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
