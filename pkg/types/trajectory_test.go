package types

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleTrajectory(n int) Trajectory {
	t := make(Trajectory, 0, n*NumJoints)
	for i := 0; i < n; i++ {
		for j := 0; j < NumJoints; j++ {
			t = append(t, float64(i)+float64(j)/10+0.123456789012345)
		}
	}
	return t
}

func TestTrajectorySegmentFlattenLossless(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7} {
		traj := sampleTrajectory(n)
		configs, err := traj.Segment()
		if err != nil {
			t.Fatalf("Segment(%d configs): %v", n, err)
		}
		if len(configs) != n {
			t.Fatalf("expected %d configurations, got %d", n, len(configs))
		}
		if diff := cmp.Diff(traj, FlattenConfigurations(configs)); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestTrajectoryReversedIsGroupwise(t *testing.T) {
	traj := Trajectory{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
		13, 14, 15, 16, 17, 18,
	}
	got, err := traj.Reversed()
	if err != nil {
		t.Fatalf("Reversed: %v", err)
	}
	want := Trajectory{
		13, 14, 15, 16, 17, 18,
		7, 8, 9, 10, 11, 12,
		1, 2, 3, 4, 5, 6,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reversed mismatch (-want +got):\n%s", diff)
	}
	// Input must be untouched.
	if traj[0] != 1 || traj[17] != 18 {
		t.Fatalf("Reversed mutated its receiver: %v", traj)
	}
}

func TestTrajectoryReversedInvolution(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10} {
		traj := sampleTrajectory(n)
		once, err := traj.Reversed()
		if err != nil {
			t.Fatalf("Reversed: %v", err)
		}
		twice, err := once.Reversed()
		if err != nil {
			t.Fatalf("Reversed twice: %v", err)
		}
		if diff := cmp.Diff(traj, twice); diff != "" {
			t.Fatalf("n=%d: reversal is not an involution (-want +got):\n%s", n, diff)
		}
	}
}

func TestTrajectoryMalformed(t *testing.T) {
	traj := Trajectory{1, 2, 3, 4, 5, 6, 7}
	if _, err := traj.Segment(); !errors.Is(err, ErrMalformedTrajectory) {
		t.Fatalf("Segment: expected ErrMalformedTrajectory, got %v", err)
	}
	if _, err := traj.Reversed(); !errors.Is(err, ErrMalformedTrajectory) {
		t.Fatalf("Reversed: expected ErrMalformedTrajectory, got %v", err)
	}
	if _, err := JointConfigurationFromSlice([]float64{1, 2}); !errors.Is(err, ErrMalformedTrajectory) {
		t.Fatalf("JointConfigurationFromSlice: expected ErrMalformedTrajectory, got %v", err)
	}
}

func TestLocationTargetValidate(t *testing.T) {
	if err := (LocationTarget{}).Validate(); !errors.Is(err, ErrMalformedTrajectory) {
		t.Fatalf("empty path: expected ErrMalformedTrajectory, got %v", err)
	}
	lt := LocationTarget{Path: sampleTrajectory(2)}
	if err := lt.Validate(); err != nil {
		t.Fatalf("valid target: %v", err)
	}
	clone := lt.Clone()
	clone.Path[0] = -1
	if lt.Path[0] == -1 {
		t.Fatal("Clone shares the path slice")
	}
}
