// Package executor maps a compiled automation.Action to exactly one
// zigbee.Commander call. It re-validates every numeric range the compiler
// already checked — redundant with compiler checks, but the action record
// may have reached here from a loaded blob the compiler never saw,
// ported from the original action_exec.c's exec_*_unicast validators.
package executor

import (
	"context"
	"fmt"

	"github.com/nyxgw/gwcore/pkg/automation"
	"github.com/nyxgw/gwcore/pkg/zigbee"
)

// Executor dispatches compiled actions to a Commander.
type Executor struct {
	cmd zigbee.Commander
}

// New creates an Executor that issues commands through cmd.
func New(cmd zigbee.Commander) *Executor {
	return &Executor{cmd: cmd}
}

// Dispatch resolves one compiled action's interned strings against c and
// issues the corresponding Commander call.
func (e *Executor) Dispatch(ctx context.Context, c *automation.Compiled, a automation.Action) error {
	cmd := c.String(a.CmdOff)

	switch a.Kind {
	case automation.ActDevice:
		return e.dispatchDevice(ctx, c, a, cmd)
	case automation.ActGroup:
		return e.dispatchGroup(ctx, a, cmd)
	case automation.ActScene:
		return e.dispatchScene(ctx, a, cmd)
	case automation.ActBind:
		return e.dispatchBind(ctx, c, a, cmd)
	default:
		return fmt.Errorf("%w: kind=%d", ErrInvalidAction, a.Kind)
	}
}

func (e *Executor) dispatchDevice(ctx context.Context, c *automation.Compiled, a automation.Action, cmd string) error {
	uid, err := zigbee.ParseUID(c.String(a.UIDOff))
	if err != nil {
		return fmt.Errorf("%w: device_uid: %v", ErrInvalidAction, err)
	}
	if a.Endpoint < 1 || a.Endpoint > 240 {
		return fmt.Errorf("%w: endpoint out of range", ErrInvalidAction)
	}

	switch cmd {
	case "onoff.on":
		return e.cmd.OnOff(ctx, uid, a.Endpoint, zigbee.OnOffOn)
	case "onoff.off":
		return e.cmd.OnOff(ctx, uid, a.Endpoint, zigbee.OnOffOff)
	case "onoff.toggle":
		return e.cmd.OnOff(ctx, uid, a.Endpoint, zigbee.OnOffToggle)
	case "level.move_to_level":
		if a.Arg0 > 254 {
			return fmt.Errorf("%w: level out of range", ErrInvalidAction)
		}
		if err := checkTransition(a.Arg1); err != nil {
			return err
		}
		return e.cmd.MoveToLevel(ctx, uid, a.Endpoint, uint8(a.Arg0), uint16(a.Arg1))
	case "color.move_to_color_xy":
		if a.Arg0 > 0xFFFF || a.Arg1 > 0xFFFF {
			return fmt.Errorf("%w: x/y out of range", ErrInvalidAction)
		}
		if err := checkTransition(a.Arg2); err != nil {
			return err
		}
		return e.cmd.MoveToColorXY(ctx, uid, a.Endpoint, uint16(a.Arg0), uint16(a.Arg1), uint16(a.Arg2))
	case "color.move_to_color_temperature":
		if a.Arg0 < 1 || a.Arg0 > 1000 {
			return fmt.Errorf("%w: mireds out of range", ErrInvalidAction)
		}
		if err := checkTransition(a.Arg1); err != nil {
			return err
		}
		return e.cmd.MoveToColorTemperature(ctx, uid, a.Endpoint, uint16(a.Arg0), uint16(a.Arg1))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd)
	}
}

func (e *Executor) dispatchGroup(ctx context.Context, a automation.Action, cmd string) error {
	groupID := a.U16_0
	if groupID == 0 || groupID == 0xFFFF {
		return fmt.Errorf("%w: group_id out of range", ErrInvalidAction)
	}

	switch cmd {
	case "onoff.on":
		return e.cmd.GroupOnOff(ctx, groupID, zigbee.OnOffOn)
	case "onoff.off":
		return e.cmd.GroupOnOff(ctx, groupID, zigbee.OnOffOff)
	case "onoff.toggle":
		return e.cmd.GroupOnOff(ctx, groupID, zigbee.OnOffToggle)
	case "level.move_to_level":
		if a.Arg0 > 254 {
			return fmt.Errorf("%w: level out of range", ErrInvalidAction)
		}
		if err := checkTransition(a.Arg1); err != nil {
			return err
		}
		return e.cmd.GroupMoveToLevel(ctx, groupID, uint8(a.Arg0), uint16(a.Arg1))
	case "color.move_to_color_xy":
		if a.Arg0 > 0xFFFF || a.Arg1 > 0xFFFF {
			return fmt.Errorf("%w: x/y out of range", ErrInvalidAction)
		}
		if err := checkTransition(a.Arg2); err != nil {
			return err
		}
		return e.cmd.GroupMoveToColorXY(ctx, groupID, uint16(a.Arg0), uint16(a.Arg1), uint16(a.Arg2))
	case "color.move_to_color_temperature":
		if a.Arg0 < 1 || a.Arg0 > 1000 {
			return fmt.Errorf("%w: mireds out of range", ErrInvalidAction)
		}
		if err := checkTransition(a.Arg1); err != nil {
			return err
		}
		return e.cmd.GroupMoveToColorTemperature(ctx, groupID, uint16(a.Arg0), uint16(a.Arg1))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd)
	}
}

func (e *Executor) dispatchScene(ctx context.Context, a automation.Action, cmd string) error {
	groupID := a.U16_0
	if groupID == 0 || groupID == 0xFFFF {
		return fmt.Errorf("%w: group_id out of range", ErrInvalidAction)
	}
	sceneID := a.U16_1
	if sceneID == 0 || sceneID > 255 {
		return fmt.Errorf("%w: scene_id out of range", ErrInvalidAction)
	}

	switch cmd {
	case "scene.store":
		return e.cmd.SceneStore(ctx, groupID, uint8(sceneID))
	case "scene.recall":
		return e.cmd.SceneRecall(ctx, groupID, uint8(sceneID))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd)
	}
}

func (e *Executor) dispatchBind(ctx context.Context, c *automation.Compiled, a automation.Action, cmd string) error {
	src, err := zigbee.ParseUID(c.String(a.UIDOff))
	if err != nil {
		return fmt.Errorf("%w: src_device_uid: %v", ErrInvalidAction, err)
	}
	dst, err := zigbee.ParseUID(c.String(a.UID2Off))
	if err != nil {
		return fmt.Errorf("%w: dst_device_uid: %v", ErrInvalidAction, err)
	}
	if a.Endpoint < 1 || a.Endpoint > 240 || a.AuxEP < 1 || a.AuxEP > 240 {
		return fmt.Errorf("%w: endpoint out of range", ErrInvalidAction)
	}
	if a.U16_0 == 0 {
		return fmt.Errorf("%w: cluster_id out of range", ErrInvalidAction)
	}

	if a.Flags&automation.ActFlagUnbind != 0 {
		return e.cmd.Unbind(ctx, src, a.Endpoint, a.U16_0, dst, a.AuxEP)
	}
	return e.cmd.Bind(ctx, src, a.Endpoint, a.U16_0, dst, a.AuxEP)
}

func checkTransition(ms uint32) error {
	if ms > 60000 {
		return fmt.Errorf("%w: transition_ms out of range", ErrInvalidAction)
	}
	return nil
}
