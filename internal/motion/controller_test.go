package motion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/pickplace/internal/trajcache"
	"github.com/mesh-intelligence/pickplace/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testParams = types.Params{
	HomeConfig:      types.JointConfiguration{0, -1.57, 1.57, 0, 1.57, 0},
	HeightDiff:      0.1,
	DownOrientation: types.Quaternion{0, 1, 0, 0},
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.DescentMaxSteps = 50
	return opts
}

func newTestController(t *testing.T, scene *fakeScene, opts Options) (*Controller, *recordingSettler) {
	t.Helper()
	settler := &recordingSettler{}
	c := New(scene, scene, scene, testParams, opts, WithSettler(settler))
	return c, settler
}

func testCache(t *testing.T) *trajcache.Cache {
	t.Helper()
	cache := trajcache.New()
	require.NoError(t, cache.Put("redBin", types.LocationTarget{
		HomeConfig: types.JointConfiguration{1, 1, 1, 1, 1, 1},
		Path:       seqTrajectory(500, 3),
	}))
	return cache
}

func testTask() types.PickPlaceTask {
	return types.NewPickPlaceTask("task-1", "tuna_fish_can", [3]float64{0.3, -0.2, 0.05}, "redBin", testParams)
}

func reverseConfigs(in []types.JointConfiguration) []types.JointConfiguration {
	out := make([]types.JointConfiguration, len(in))
	for i, c := range in {
		out[len(in)-1-i] = c
	}
	return out
}

func TestFollowPathSendsEveryConfigurationInOrder(t *testing.T) {
	scene := newFakeScene()
	opts := testOptions()
	c, settler := newTestController(t, scene, opts)

	path := seqTrajectory(10, 5)
	sent, err := c.FollowPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, len(path)/types.NumJoints, sent)

	want, err := path.Segment()
	require.NoError(t, err)
	if diff := cmp.Diff(want, scene.commands); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}

	wantDelays := []time.Duration{
		opts.SettleDelay, opts.SettleDelay, opts.SettleDelay, opts.SettleDelay, opts.SettleDelay,
		opts.PathStabilize,
	}
	assert.Equal(t, wantDelays, settler.delays)
}

func TestFollowPathRejectsMalformedPath(t *testing.T) {
	scene := newFakeScene()
	c, _ := newTestController(t, scene, testOptions())

	_, err := c.FollowPath(context.Background(), types.Trajectory{1, 2, 3})
	require.ErrorIs(t, err, types.ErrMalformedTrajectory)
	assert.Empty(t, scene.commands)
}

func TestMoveHomeRetracesGroupsBackwards(t *testing.T) {
	scene := newFakeScene()
	c, _ := newTestController(t, scene, testOptions())

	path := seqTrajectory(7, 4)
	require.NoError(t, c.MoveHome(context.Background(), nil, FromTrajectory(path)))

	forward, err := path.Segment()
	require.NoError(t, err)
	assert.Equal(t, reverseConfigs(forward), scene.commands)
	assert.Equal(t, 1, scene.callsNamed("createPassiveShape"))
	assert.Equal(t, 1, scene.callsNamed("removeObjects"))
}

func TestPickAndPlaceSucceeds(t *testing.T) {
	scene := newFakeScene()
	c, _ := newTestController(t, scene, testOptions())
	cache := testCache(t)
	task := testTask()

	report, err := c.PickAndPlace(context.Background(), cache, task)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, StepDone, report.Reached)
	assert.Equal(t, "task-1", report.TaskID)

	// 4 out to the item, 4 back, 3 out to the bin, 3 back.
	assert.Equal(t, 14, report.Commands)
	assert.Len(t, scene.commands, 14)
	assert.Equal(t, 2, report.GraspToggles)
	assert.Equal(t, []bool{true, false}, scene.toggles)

	_, held := c.Grasp().Engaged()
	assert.False(t, held)

	// Three descent moves then the lift back to the pick pose.
	require.Len(t, scene.poses, 4)
	for i := 0; i < 3; i++ {
		want := task.Pick.Z() - float64(i+1)*testOptions().DescentStep
		assert.InDelta(t, want, scene.poses[i].Z(), 1e-9)
	}
	assert.Equal(t, task.Pick, scene.poses[3])
}

// The trip home with the item is assumed to mirror the trip out. The
// planner never confirms this, so check it on the commands actually sent.
func TestReturnPathsMirrorOutboundPaths(t *testing.T) {
	scene := newFakeScene()
	c, _ := newTestController(t, scene, testOptions())

	_, err := c.PickAndPlace(context.Background(), testCache(t), testTask())
	require.NoError(t, err)
	require.Len(t, scene.commands, 14)

	if diff := cmp.Diff(reverseConfigs(scene.commands[0:4]), scene.commands[4:8]); diff != "" {
		t.Errorf("return from pick is not the mirrored approach (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(reverseConfigs(scene.commands[8:11]), scene.commands[11:14]); diff != "" {
		t.Errorf("return from place is not the mirrored approach (-want +got):\n%s", diff)
	}
}

func TestPickAndPlaceFirstPlanFailureHasNoSideEffects(t *testing.T) {
	scene := newFakeScene()
	scene.noPath = true
	c, _ := newTestController(t, scene, testOptions())

	report, err := c.PickAndPlace(context.Background(), testCache(t), testTask())
	require.ErrorIs(t, err, types.ErrPlanningFailure)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepApproachPick, stepErr.Step)
	assert.False(t, report.Succeeded())
	assert.Zero(t, report.Commands)
	assert.Zero(t, report.GraspToggles)
	assert.Empty(t, scene.commands)
	assert.Empty(t, scene.toggles)
	assert.Zero(t, scene.callsNamed("createPassiveShape"))
	assert.Zero(t, scene.callsNamed("moveToPose"))
}

func TestDescentIsBoundedWhenSensorNeverFires(t *testing.T) {
	scene := newFakeScene()
	scene.contactAfter = -1
	opts := testOptions()
	opts.DescentTimeout = 0
	c, _ := newTestController(t, scene, opts)

	report, err := c.PickAndPlace(context.Background(), testCache(t), testTask())
	require.ErrorIs(t, err, types.ErrContactNotFound)
	assert.Equal(t, StepDescend, report.Reached)
	assert.Equal(t, opts.DescentMaxSteps, scene.moveToPoseCalls)
	assert.Equal(t, opts.DescentMaxSteps, scene.polls)
	assert.Empty(t, scene.toggles)
}

func TestDescentStopsAtTimeout(t *testing.T) {
	scene := newFakeScene()
	scene.contactAfter = -1
	opts := testOptions()
	opts.DescentMaxSteps = 1000
	opts.DescentTimeout = 10 * time.Second

	clock := time.Unix(0, 0)
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	c := New(scene, scene, scene, testParams, opts, WithSettler(&recordingSettler{}), WithClock(tick))

	_, err := c.PickAndPlace(context.Background(), testCache(t), testTask())
	require.ErrorIs(t, err, types.ErrContactNotFound)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 9, scene.moveToPoseCalls)
}

func TestDescentIKFailureAborts(t *testing.T) {
	scene := newFakeScene()
	scene.moveToPoseFailAt = 2
	c, _ := newTestController(t, scene, testOptions())

	report, err := c.PickAndPlace(context.Background(), testCache(t), testTask())
	require.ErrorIs(t, err, types.ErrPlanningFailure)
	assert.Equal(t, StepDescend, report.Reached)
	assert.Empty(t, scene.toggles)
}

func TestNextTransactionDeliversObjectHeldAfterLiftFailure(t *testing.T) {
	scene := newFakeScene()
	scene.contactAfter = 1
	scene.moveToPoseFailAt = 2 // the lift
	c, _ := newTestController(t, scene, testOptions())
	cache := testCache(t)

	report, err := c.PickAndPlace(context.Background(), cache, testTask())
	require.ErrorIs(t, err, types.ErrPlanningFailure)
	assert.Equal(t, StepLift, report.Reached)
	obj, held := c.Grasp().Engaged()
	require.True(t, held)
	assert.Equal(t, types.Handle(42), obj)
	require.Len(t, scene.commands, 4)

	report, err = c.PickAndPlace(context.Background(), cache, testTask())
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	// 4 back from the item, 3 out to the bin and 3 back, then the task.
	assert.Equal(t, 10+14, report.Commands)
	assert.Equal(t, 3, report.GraspToggles)
	assert.Equal(t, []bool{true, false, true, false}, scene.toggles)

	if diff := cmp.Diff(reverseConfigs(scene.commands[0:4]), scene.commands[4:8]); diff != "" {
		t.Errorf("recovery did not retrace the approach (-want +got):\n%s", diff)
	}
	bin, err := seqTrajectory(500, 3).Segment()
	require.NoError(t, err)
	assert.Equal(t, bin, scene.commands[8:11])
	assert.Equal(t, reverseConfigs(bin), scene.commands[11:14])

	for i := 0; i < 2; i++ {
		report, err = c.PickAndPlace(context.Background(), cache, testTask())
		require.NoError(t, err)
		assert.Equal(t, 14, report.Commands)
	}
	_, held = c.Grasp().Engaged()
	assert.False(t, held)
}

func TestRecoverDeliversHeldObject(t *testing.T) {
	scene := newFakeScene()
	scene.contactAfter = 1
	scene.moveToPoseFailAt = 2
	c, _ := newTestController(t, scene, testOptions())
	cache := testCache(t)

	_, err := c.PickAndPlace(context.Background(), cache, testTask())
	require.ErrorIs(t, err, types.ErrPlanningFailure)

	require.NoError(t, c.Recover(context.Background(), cache))
	_, held := c.Grasp().Engaged()
	assert.False(t, held)
	assert.Len(t, scene.commands, 4+10)
	assert.Equal(t, 1, scene.callsNamed("toggleGrasp(42,false)"))

	// Nothing left to clean up.
	require.NoError(t, c.Recover(context.Background(), cache))
	assert.Len(t, scene.commands, 4+10)
}

func TestNextTransactionReturnsHomeAfterDescentFailure(t *testing.T) {
	scene := newFakeScene()
	scene.contactAfter = -1
	opts := testOptions()
	opts.DescentTimeout = 0
	c, _ := newTestController(t, scene, opts)
	cache := testCache(t)

	_, err := c.PickAndPlace(context.Background(), cache, testTask())
	require.ErrorIs(t, err, types.ErrContactNotFound)

	scene.mu.Lock()
	scene.contactAfter = scene.polls + 1
	scene.mu.Unlock()

	report, err := c.PickAndPlace(context.Background(), cache, testTask())
	require.NoError(t, err)
	assert.Equal(t, 4+14, report.Commands)
	assert.Equal(t, []bool{true, false}, scene.toggles)
	if diff := cmp.Diff(reverseConfigs(scene.commands[0:4]), scene.commands[4:8]); diff != "" {
		t.Errorf("arm did not return home before the next task (-want +got):\n%s", diff)
	}
}

func TestUncachedPlaceLocationAbortsBeforeMoving(t *testing.T) {
	scene := newFakeScene()
	c, _ := newTestController(t, scene, testOptions())
	task := testTask()
	task.Place = "blueBin"

	cache := testCache(t)
	report, err := c.PickAndPlace(context.Background(), cache, task)
	require.ErrorIs(t, err, types.ErrCacheMiss)
	assert.Equal(t, StepApproachPlace, report.Reached)
	// Only the trip to the item and back.
	assert.Len(t, scene.commands, 8)

	// The held object has nowhere to go, so the next task stops at IDLE.
	getPaths := scene.callsNamed("getPath")
	_, err = c.PickAndPlace(context.Background(), cache, testTask())
	require.ErrorIs(t, err, types.ErrCacheMiss)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepIdle, stepErr.Step)
	assert.Equal(t, getPaths, scene.callsNamed("getPath"))
}

func TestMoveWithPathRemovesShapeOfMalformedPlan(t *testing.T) {
	scene := newFakeScene()
	scene.badPath = true
	c, _ := newTestController(t, scene, testOptions())

	_, err := c.MoveWithPath(context.Background(), nil, ToPose(testTask().Pick))
	require.ErrorIs(t, err, types.ErrPlanningFailure)
	assert.Equal(t, 1, scene.callsNamed("removeObjects"))
	assert.Empty(t, scene.commands)
}

func TestFollowPathStopsWhenSettleFails(t *testing.T) {
	scene := newFakeScene()
	settles := 0
	stop := errors.New("arm unstable")
	settler := SettlerFunc(func(ctx context.Context, d time.Duration) error {
		settles++
		if settles == 2 {
			return stop
		}
		return nil
	})
	c := New(scene, scene, scene, testParams, testOptions(), WithSettler(settler))

	sent, err := c.FollowPath(context.Background(), seqTrajectory(0, 5))
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 2, sent)
	assert.Len(t, scene.commands, 2)
}

func TestConcurrentTransactionIsRejected(t *testing.T) {
	scene := newFakeScene()
	scene.getPathGate = make(chan struct{})
	scene.entered = make(chan struct{})
	c, _ := newTestController(t, scene, testOptions())
	cache := testCache(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.PickAndPlace(context.Background(), cache, testTask())
		done <- err
	}()
	<-scene.entered

	report, err := c.PickAndPlace(context.Background(), cache, testTask())
	require.ErrorIs(t, err, types.ErrTransactionInFlight)
	assert.Zero(t, report.Commands)

	_, err = c.Calibrate(context.Background(), map[types.LocationID]types.LocationSpec{"redBin": {}})
	require.ErrorIs(t, err, types.ErrTransactionInFlight)
	_, err = c.FollowPath(context.Background(), seqTrajectory(0, 1))
	require.ErrorIs(t, err, types.ErrTransactionInFlight)

	scene.mu.Lock()
	assert.Empty(t, scene.commands)
	assert.Empty(t, scene.toggles)
	scene.mu.Unlock()

	close(scene.getPathGate)
	require.NoError(t, <-done)
}

func TestMoveWithPathVisualizesWhenEnabled(t *testing.T) {
	scene := newFakeScene()
	opts := testOptions()
	opts.VisualizePath = true
	c, settler := newTestController(t, scene, opts)

	_, err := c.MoveWithPath(context.Background(), testCache(t), ToLocation("redBin"))
	require.NoError(t, err)
	assert.Equal(t, 1, scene.callsNamed("visualizePath"))
	// Markers, then the passive shape.
	assert.Equal(t, 2, scene.callsNamed("removeObjects"))
	assert.Equal(t, opts.VisualizeHold, settler.delays[0])
}

func TestCalibrateBracketsCollisionChecking(t *testing.T) {
	scene := newFakeScene()
	locations := map[types.LocationID]types.LocationSpec{
		"redBin":  {Position: [3]float64{0.57, 0.375, 0.6}},
		"blueBin": {Position: [3]float64{-0.45, 0.375, 0.6}},
	}
	scene.homeTargets[locations["redBin"].Position] = types.LocationTarget{
		HomeConfig: types.JointConfiguration{1, 2, 3, 4, 5, 6},
		Path:       seqTrajectory(300, 2),
	}
	scene.homeTargets[locations["blueBin"].Position] = types.LocationTarget{
		HomeConfig: types.JointConfiguration{6, 5, 4, 3, 2, 1},
		Path:       seqTrajectory(400, 3),
	}
	c, _ := newTestController(t, scene, testOptions())

	cache, err := c.Calibrate(context.Background(), locations)
	require.NoError(t, err)
	assert.Equal(t, []types.LocationID{"blueBin", "redBin"}, cache.Locations())

	require.NotEmpty(t, scene.calls)
	assert.Equal(t, "setCollisionChecking(false)", scene.calls[0])
	assert.Equal(t, "setCollisionChecking(true)", scene.calls[len(scene.calls)-1])
	assert.Equal(t, 1, scene.callsNamed("setCollisionChecking(false)"))
	assert.Equal(t, 1, scene.callsNamed("setCollisionChecking(true)"))

	// blueBin first: 3 out, 3 back; then redBin: 2 out, 2 back.
	require.Len(t, scene.commands, 10)
	blue, _ := seqTrajectory(400, 3).Segment()
	assert.Equal(t, blue, scene.commands[0:3])
	assert.Equal(t, reverseConfigs(blue), scene.commands[3:6])

	got, err := cache.Get("redBin")
	require.NoError(t, err)
	assert.Equal(t, types.JointConfiguration{1, 2, 3, 4, 5, 6}, got.HomeConfig)
}

func TestCalibrateReenablesCollisionCheckingOnFailure(t *testing.T) {
	scene := newFakeScene()
	c, _ := newTestController(t, scene, testOptions())

	_, err := c.Calibrate(context.Background(), map[types.LocationID]types.LocationSpec{
		"nowhere": {Position: [3]float64{9, 9, 9}},
	})
	require.ErrorIs(t, err, types.ErrPlanningFailure)
	assert.Equal(t, "setCollisionChecking(true)", scene.calls[len(scene.calls)-1])
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "DESCEND_UNTIL_CONTACT", StepDescend.String())
	assert.Equal(t, "Step(99)", Step(99).String())
}
