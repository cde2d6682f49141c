package zigbee

import "encoding/binary"

// ZCL cluster IDs
const (
	zclClusterOnOff        uint16 = 0x0006
	zclClusterLevelControl uint16 = 0x0008
	zclClusterScenes       uint16 = 0x0005
	zclClusterColorControl uint16 = 0x0300
)

// ZDO profile/cluster IDs for bind/unbind management commands.
const (
	zdoProfile             uint16 = 0x0000
	zdoClusterBindRequest  uint16 = 0x0021
	zdoClusterUnbindRequest uint16 = 0x0022
)

// ZCL command IDs for On/Off cluster
const (
	zclCmdOff    uint8 = 0x00
	zclCmdOn     uint8 = 0x01
	zclCmdToggle uint8 = 0x02
)

// ZCL command IDs for Level Control cluster
const (
	zclCmdMoveToLevel          uint8 = 0x00
	zclCmdMoveToLevelWithOnOff uint8 = 0x04
)

// ZCL command IDs for Color Control cluster
const (
	zclCmdMoveToColor            uint8 = 0x07
	zclCmdMoveToColorTemperature uint8 = 0x0A
)

// ZCL command IDs for Scenes cluster
const (
	zclCmdStoreScene  uint8 = 0x04
	zclCmdRecallScene uint8 = 0x05
)

// ZCL frame types
const (
	zclFrameTypeClusterSpecific uint8 = 0x01
)

// ZCL direction
const (
	zclDirectionClientToServer uint8 = 0x00
)

// HA profile
const (
	zclProfileHA uint16 = 0x0104
)

// ZCLHeader represents a ZCL frame header.
type ZCLHeader struct {
	FrameControl uint8
	SeqNumber    uint8
	CommandID    uint8
}

var zclSeqCounter uint8

func nextZCLSeq() uint8 {
	zclSeqCounter++
	return zclSeqCounter
}

// EncodeZCLClusterCommand builds a ZCL cluster-specific command frame.
func EncodeZCLClusterCommand(commandID uint8, payload []byte) []byte {
	header := ZCLHeader{
		FrameControl: zclFrameTypeClusterSpecific | zclDirectionClientToServer,
		SeqNumber:    nextZCLSeq(),
		CommandID:    commandID,
	}

	frame := make([]byte, 0, 3+len(payload))
	frame = append(frame, header.FrameControl)
	frame = append(frame, header.SeqNumber)
	frame = append(frame, header.CommandID)
	frame = append(frame, payload...)
	return frame
}

// BuildOnOffCommand builds a ZCL On/Off cluster command.
func BuildOnOffCommand(cmd uint8) []byte {
	return EncodeZCLClusterCommand(cmd, nil)
}

// BuildMoveToLevelCommand builds a ZCL Level Control Move to Level (with
// On/Off) command.
func BuildMoveToLevelCommand(level uint8, transitionTime uint16) []byte {
	payload := make([]byte, 3)
	payload[0] = level
	binary.LittleEndian.PutUint16(payload[1:3], transitionTime)
	return EncodeZCLClusterCommand(zclCmdMoveToLevelWithOnOff, payload)
}

// BuildMoveToColorXYCommand builds a ZCL Color Control Move to Color
// command (CIE xy chromaticity coordinates, each 0..0xFFFF).
func BuildMoveToColorXYCommand(x, y, transitionTime uint16) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], x)
	binary.LittleEndian.PutUint16(payload[2:4], y)
	binary.LittleEndian.PutUint16(payload[4:6], transitionTime)
	return EncodeZCLClusterCommand(zclCmdMoveToColor, payload)
}

// BuildMoveToColorTemperatureCommand builds a ZCL Color Control Move to
// Color Temperature command (mireds).
func BuildMoveToColorTemperatureCommand(mireds, transitionTime uint16) []byte {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], mireds)
	binary.LittleEndian.PutUint16(payload[2:4], transitionTime)
	return EncodeZCLClusterCommand(zclCmdMoveToColorTemperature, payload)
}

// BuildSceneStoreCommand builds a ZCL Scenes Store Scene command.
func BuildSceneStoreCommand(groupID uint16, sceneID uint8) []byte {
	payload := make([]byte, 3)
	binary.LittleEndian.PutUint16(payload[0:2], groupID)
	payload[2] = sceneID
	return EncodeZCLClusterCommand(zclCmdStoreScene, payload)
}

// BuildSceneRecallCommand builds a ZCL Scenes Recall Scene command.
func BuildSceneRecallCommand(groupID uint16, sceneID uint8) []byte {
	payload := make([]byte, 3)
	binary.LittleEndian.PutUint16(payload[0:2], groupID)
	payload[2] = sceneID
	return EncodeZCLClusterCommand(zclCmdRecallScene, payload)
}

// BuildBindRequest builds a ZDO Bind/Unbind Request payload: source EUI-64,
// source endpoint, cluster id, destination addressing mode (0x03 = EUI-64
// + endpoint, the only mode this port builds), destination EUI-64 and
// endpoint.
func BuildBindRequest(src UID, srcEndpoint uint8, clusterID uint16, dst UID, dstEndpoint uint8) []byte {
	const addrModeIEEE = 0x03
	payload := make([]byte, 0, 8+1+2+1+8+1)
	payload = append(payload, eui64Bytes(src)...)
	payload = append(payload, srcEndpoint)
	clusterBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(clusterBytes, clusterID)
	payload = append(payload, clusterBytes...)
	payload = append(payload, addrModeIEEE)
	payload = append(payload, eui64Bytes(dst)...)
	payload = append(payload, dstEndpoint)
	return payload
}

// eui64Bytes decodes a UID's "0x"+16-hex-digit textual form back into its
// 8 raw address bytes, little-endian as ZDO requests expect.
func eui64Bytes(u UID) []byte {
	out := make([]byte, 8)
	s := u.String()
	if len(s) != UIDLen {
		return out
	}
	for i := 0; i < 8; i++ {
		hi := hexNibble(s[2+i*2])
		lo := hexNibble(s[2+i*2+1])
		out[7-i] = hi<<4 | lo
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

