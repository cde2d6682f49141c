package zigbee

import (
	"context"
	"errors"
)

// ErrNotConnected indicates no radio driver is wired to issue commands.
var ErrNotConnected = errors.New("zigbee: not connected")

// OnOffCommand discriminates the On/Off cluster's three cluster-specific
// commands.
type OnOffCommand uint8

const (
	OnOffOn OnOffCommand = iota + 1
	OnOffOff
	OnOffToggle
)

func (c OnOffCommand) zclCommandID() uint8 {
	switch c {
	case OnOffOn:
		return zclCmdOn
	case OnOffOff:
		return zclCmdOff
	default:
		return zclCmdToggle
	}
}

// Commander is the narrow command-issuance interface the rules engine's
// action executor dispatches through. It is the boundary with the
// (out-of-scope) radio stack: nothing upstream of Commander ever touches
// a serial port or the EZSP/ASH wire protocol.
type Commander interface {
	OnOff(ctx context.Context, uid UID, endpoint uint8, cmd OnOffCommand) error
	MoveToLevel(ctx context.Context, uid UID, endpoint uint8, level uint8, transitionMS uint16) error
	MoveToColorXY(ctx context.Context, uid UID, endpoint uint8, x, y uint16, transitionMS uint16) error
	MoveToColorTemperature(ctx context.Context, uid UID, endpoint uint8, mireds uint16, transitionMS uint16) error

	GroupOnOff(ctx context.Context, groupID uint16, cmd OnOffCommand) error
	GroupMoveToLevel(ctx context.Context, groupID uint16, level uint8, transitionMS uint16) error
	GroupMoveToColorXY(ctx context.Context, groupID uint16, x, y uint16, transitionMS uint16) error
	GroupMoveToColorTemperature(ctx context.Context, groupID uint16, mireds uint16, transitionMS uint16) error

	SceneStore(ctx context.Context, groupID uint16, sceneID uint8) error
	SceneRecall(ctx context.Context, groupID uint16, sceneID uint8) error

	Bind(ctx context.Context, src UID, srcEndpoint uint8, clusterID uint16, dst UID, dstEndpoint uint8) error
	Unbind(ctx context.Context, src UID, srcEndpoint uint8, clusterID uint16, dst UID, dstEndpoint uint8) error
}

// NullCommander is a no-op Commander used when no radio driver is wired,
// ported from the teacher's device.NullController fallback-mode pattern.
type NullCommander struct{}

// NewNullCommander creates a new NullCommander.
func NewNullCommander() *NullCommander { return &NullCommander{} }

func (c *NullCommander) OnOff(ctx context.Context, uid UID, endpoint uint8, cmd OnOffCommand) error {
	return ErrNotConnected
}

func (c *NullCommander) MoveToLevel(ctx context.Context, uid UID, endpoint, level uint8, transitionMS uint16) error {
	return ErrNotConnected
}

func (c *NullCommander) MoveToColorXY(ctx context.Context, uid UID, endpoint uint8, x, y, transitionMS uint16) error {
	return ErrNotConnected
}

func (c *NullCommander) MoveToColorTemperature(ctx context.Context, uid UID, endpoint uint8, mireds, transitionMS uint16) error {
	return ErrNotConnected
}

func (c *NullCommander) GroupOnOff(ctx context.Context, groupID uint16, cmd OnOffCommand) error {
	return ErrNotConnected
}

func (c *NullCommander) GroupMoveToLevel(ctx context.Context, groupID uint16, level uint8, transitionMS uint16) error {
	return ErrNotConnected
}

func (c *NullCommander) GroupMoveToColorXY(ctx context.Context, groupID uint16, x, y, transitionMS uint16) error {
	return ErrNotConnected
}

func (c *NullCommander) GroupMoveToColorTemperature(ctx context.Context, groupID uint16, mireds, transitionMS uint16) error {
	return ErrNotConnected
}

func (c *NullCommander) SceneStore(ctx context.Context, groupID uint16, sceneID uint8) error {
	return ErrNotConnected
}

func (c *NullCommander) SceneRecall(ctx context.Context, groupID uint16, sceneID uint8) error {
	return ErrNotConnected
}

func (c *NullCommander) Bind(ctx context.Context, src UID, srcEndpoint uint8, clusterID uint16, dst UID, dstEndpoint uint8) error {
	return ErrNotConnected
}

func (c *NullCommander) Unbind(ctx context.Context, src UID, srcEndpoint uint8, clusterID uint16, dst UID, dstEndpoint uint8) error {
	return ErrNotConnected
}

// FrameSink receives the raw ZCL (or ZDO, for bind/unbind) frame bytes a
// FrameCommander builds and is responsible for actually getting them onto
// the air — a real radio driver plugs in here. endpoint == GroupEndpoint
// marks a groupcast/broadcast-addressed frame rather than a unicast one.
type FrameSink func(uid UID, endpoint uint8, profile, cluster uint16, frame []byte) error

// FrameCommander implements Commander by building ZCL/ZDO command frames
// and handing them to an injected FrameSink. It never opens a serial port
// or speaks EZSP itself — that radio-stack boundary is explicitly out of
// scope; FrameCommander ships the frame-encoding half so it can be
// exercised end-to-end in tests without real hardware.
type FrameCommander struct {
	sink FrameSink
}

// NewFrameCommander creates a FrameCommander that hands every built frame
// to sink.
func NewFrameCommander(sink FrameSink) *FrameCommander {
	return &FrameCommander{sink: sink}
}

func (c *FrameCommander) OnOff(ctx context.Context, uid UID, endpoint uint8, cmd OnOffCommand) error {
	frame := BuildOnOffCommand(cmd.zclCommandID())
	return c.sink(uid, endpoint, zclProfileHA, zclClusterOnOff, frame)
}

func (c *FrameCommander) MoveToLevel(ctx context.Context, uid UID, endpoint, level uint8, transitionMS uint16) error {
	frame := BuildMoveToLevelCommand(level, transitionMS)
	return c.sink(uid, endpoint, zclProfileHA, zclClusterLevelControl, frame)
}

func (c *FrameCommander) MoveToColorXY(ctx context.Context, uid UID, endpoint uint8, x, y, transitionMS uint16) error {
	frame := BuildMoveToColorXYCommand(x, y, transitionMS)
	return c.sink(uid, endpoint, zclProfileHA, zclClusterColorControl, frame)
}

func (c *FrameCommander) MoveToColorTemperature(ctx context.Context, uid UID, endpoint uint8, mireds, transitionMS uint16) error {
	frame := BuildMoveToColorTemperatureCommand(mireds, transitionMS)
	return c.sink(uid, endpoint, zclProfileHA, zclClusterColorControl, frame)
}

func (c *FrameCommander) GroupOnOff(ctx context.Context, groupID uint16, cmd OnOffCommand) error {
	frame := BuildOnOffCommand(cmd.zclCommandID())
	return c.sink(groupUID(groupID), GroupEndpoint, zclProfileHA, zclClusterOnOff, frame)
}

func (c *FrameCommander) GroupMoveToLevel(ctx context.Context, groupID uint16, level uint8, transitionMS uint16) error {
	frame := BuildMoveToLevelCommand(level, transitionMS)
	return c.sink(groupUID(groupID), GroupEndpoint, zclProfileHA, zclClusterLevelControl, frame)
}

func (c *FrameCommander) GroupMoveToColorXY(ctx context.Context, groupID uint16, x, y, transitionMS uint16) error {
	frame := BuildMoveToColorXYCommand(x, y, transitionMS)
	return c.sink(groupUID(groupID), GroupEndpoint, zclProfileHA, zclClusterColorControl, frame)
}

func (c *FrameCommander) GroupMoveToColorTemperature(ctx context.Context, groupID uint16, mireds, transitionMS uint16) error {
	frame := BuildMoveToColorTemperatureCommand(mireds, transitionMS)
	return c.sink(groupUID(groupID), GroupEndpoint, zclProfileHA, zclClusterColorControl, frame)
}

func (c *FrameCommander) SceneStore(ctx context.Context, groupID uint16, sceneID uint8) error {
	frame := BuildSceneStoreCommand(groupID, sceneID)
	return c.sink(groupUID(groupID), GroupEndpoint, zclProfileHA, zclClusterScenes, frame)
}

func (c *FrameCommander) SceneRecall(ctx context.Context, groupID uint16, sceneID uint8) error {
	frame := BuildSceneRecallCommand(groupID, sceneID)
	return c.sink(groupUID(groupID), GroupEndpoint, zclProfileHA, zclClusterScenes, frame)
}

func (c *FrameCommander) Bind(ctx context.Context, src UID, srcEndpoint uint8, clusterID uint16, dst UID, dstEndpoint uint8) error {
	frame := BuildBindRequest(src, srcEndpoint, clusterID, dst, dstEndpoint)
	return c.sink(src, srcEndpoint, zdoProfile, zdoClusterBindRequest, frame)
}

func (c *FrameCommander) Unbind(ctx context.Context, src UID, srcEndpoint uint8, clusterID uint16, dst UID, dstEndpoint uint8) error {
	frame := BuildBindRequest(src, srcEndpoint, clusterID, dst, dstEndpoint)
	return c.sink(src, srcEndpoint, zdoProfile, zdoClusterUnbindRequest, frame)
}
