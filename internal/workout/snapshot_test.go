package workout

import (
	"testing"

	"github.com/meltforce/liftlog/internal/models"
)

// TestBuildSetsSnapshotOrdersBySetNumber verifies the snapshot is sorted and
// its checksum does not depend on record order.
func TestBuildSetsSnapshotOrdersBySetNumber(t *testing.T) {
	a := []models.SetRecord{
		{SetNumber: 3, Reps: 6, Weight: 80},
		{SetNumber: 1, Reps: 8, Weight: 75},
		{SetNumber: 2, Reps: 8, Weight: 77.5},
	}
	b := []models.SetRecord{a[1], a[2], a[0]}

	sa := BuildSetsSnapshot(a, 4)
	sb := BuildSetsSnapshot(b, 9)

	for i, s := range sa.Sets {
		if s.SetNumber != i+1 {
			t.Errorf("sets[%d].SetNumber = %d", i, s.SetNumber)
		}
	}
	if sa.Checksum != sb.Checksum {
		t.Errorf("checksum depends on record order: %s vs %s", sa.Checksum, sb.Checksum)
	}
	if sa.Version != 4 || sb.Version != 9 {
		t.Errorf("versions = %d/%d", sa.Version, sb.Version)
	}
}

// TestSetsChecksumDetectsChanges verifies any field change alters the checksum.
func TestSetsChecksumDetectsChanges(t *testing.T) {
	base := []models.SetEntry{{SetNumber: 1, Reps: 5, Weight: 100}}
	sum := SetsChecksum(base)
	if len(sum) != 32 {
		t.Errorf("checksum length = %d, want 32", len(sum))
	}

	variants := [][]models.SetEntry{
		{{SetNumber: 2, Reps: 5, Weight: 100}},
		{{SetNumber: 1, Reps: 6, Weight: 100}},
		{{SetNumber: 1, Reps: 5, Weight: 100.25}},
		nil,
	}
	for _, v := range variants {
		if SetsChecksum(v) == sum {
			t.Errorf("checksum of %+v equals base", v)
		}
	}

	if empty := BuildSetsSnapshot(nil, 0); empty.Checksum == "" || empty.Sets == nil {
		t.Errorf("empty snapshot = %+v, want checksum and empty list", empty)
	}
}
