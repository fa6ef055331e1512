package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// fakeScene implements types.Planner, types.Actuator and types.GraspSensor
// and records every call in order.
type fakeScene struct {
	mu sync.Mutex

	calls    []string
	commands []types.JointConfiguration
	toggles  []bool
	poses    []types.Pose

	pickPath types.Trajectory
	noPath   bool
	badPath  bool

	// contactAfter is the number of descent polls before contact; a
	// negative value never reports contact.
	contactAfter int
	polls        int
	object       types.Handle

	moveToPoseFailAt int // 1-based call index; zero never fails
	moveToPoseCalls  int

	homeTargets map[[3]float64]types.LocationTarget
	nextHandle  types.Handle

	getPathGate chan struct{}
	entered     chan struct{}
}

func newFakeScene() *fakeScene {
	return &fakeScene{
		pickPath:     seqTrajectory(100, 4),
		contactAfter: 3,
		object:       42,
		nextHandle:   1000,
		homeTargets:  make(map[[3]float64]types.LocationTarget),
	}
}

func seqTrajectory(base float64, configs int) types.Trajectory {
	out := make(types.Trajectory, 0, configs*types.NumJoints)
	for i := 0; i < configs; i++ {
		for j := 0; j < types.NumJoints; j++ {
			out = append(out, base+float64(i)+float64(j)/10)
		}
	}
	return out
}

func (f *fakeScene) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeScene) handle() types.Handle {
	f.nextHandle++
	return f.nextHandle
}

func (f *fakeScene) Params(ctx context.Context) (types.Params, error) {
	return types.Params{}, nil
}

func (f *fakeScene) GetPath(ctx context.Context, pose types.Pose) (types.PlannedPath, bool, error) {
	if f.getPathGate != nil {
		f.entered <- struct{}{}
		<-f.getPathGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getPath")
	if f.noPath {
		return types.PlannedPath{}, false, nil
	}
	if f.badPath {
		return types.PlannedPath{Path: types.Trajectory{1, 2, 3}, Shape: f.handle()}, true, nil
	}
	return types.PlannedPath{Path: f.pickPath.Clone(), Shape: f.handle()}, true, nil
}

func (f *fakeScene) FindHomeTargetPath(ctx context.Context, pose types.Pose) (types.LocationTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("findHomeTargetPath")
	t, ok := f.homeTargets[pose.Position]
	if !ok {
		return types.LocationTarget{}, errors.New("unreachable")
	}
	return t.Clone(), nil
}

func (f *fakeScene) CreatePassiveShape(ctx context.Context, config types.JointConfiguration) (types.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("createPassiveShape")
	return f.handle(), nil
}

func (f *fakeScene) MoveToPose(ctx context.Context, pose types.Pose) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("moveToPose")
	f.moveToPoseCalls++
	f.poses = append(f.poses, pose)
	if f.moveToPoseFailAt > 0 && f.moveToPoseCalls == f.moveToPoseFailAt {
		return false, nil
	}
	return true, nil
}

func (f *fakeScene) VisualizePath(ctx context.Context, path types.Trajectory, steps int) ([]types.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("visualizePath")
	return []types.Handle{f.handle(), f.handle()}, nil
}

func (f *fakeScene) SetCollisionChecking(ctx context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("setCollisionChecking(%v)", enabled)
	return nil
}

func (f *fakeScene) RemoveObjects(ctx context.Context, handles []types.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("removeObjects")
	return nil
}

func (f *fakeScene) SetJointTargets(ctx context.Context, config types.JointConfiguration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, config)
	return nil
}

func (f *fakeScene) ToggleGrasp(ctx context.Context, object types.Handle, engage bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("toggleGrasp(%d,%v)", object, engage)
	f.toggles = append(f.toggles, engage)
	return nil
}

func (f *fakeScene) DetectContact(ctx context.Context) (types.Handle, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.contactAfter >= 0 && f.polls >= f.contactAfter {
		return f.object, true, nil
	}
	return types.NoHandle, false, nil
}

func (f *fakeScene) callsNamed(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// recordingSettler records every requested delay without sleeping.
type recordingSettler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSettler) Settle(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}
