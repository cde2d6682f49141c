package zigbee

import (
	"encoding/binary"
	"testing"
)

func TestBuildOnOffCommand(t *testing.T) {
	frame := BuildOnOffCommand(zclCmdOn)
	if len(frame) != 3 {
		t.Fatalf("len = %d, want 3", len(frame))
	}
	if frame[2] != zclCmdOn {
		t.Errorf("command id = %#x, want %#x", frame[2], zclCmdOn)
	}
}

func TestBuildMoveToLevelCommand(t *testing.T) {
	frame := BuildMoveToLevelCommand(200, 500)
	if len(frame) != 6 {
		t.Fatalf("len = %d, want 6", len(frame))
	}
	if frame[3] != 200 {
		t.Errorf("level = %d, want 200", frame[3])
	}
	if got := binary.LittleEndian.Uint16(frame[4:6]); got != 500 {
		t.Errorf("transition = %d, want 500", got)
	}
}

func TestBuildMoveToColorXYCommand(t *testing.T) {
	frame := BuildMoveToColorXYCommand(21845, 43690, 100)
	payload := frame[3:]
	if got := binary.LittleEndian.Uint16(payload[0:2]); got != 21845 {
		t.Errorf("x = %d, want 21845", got)
	}
	if got := binary.LittleEndian.Uint16(payload[2:4]); got != 43690 {
		t.Errorf("y = %d, want 43690", got)
	}
	if got := binary.LittleEndian.Uint16(payload[4:6]); got != 100 {
		t.Errorf("transition = %d, want 100", got)
	}
}

func TestBuildMoveToColorTemperatureCommand(t *testing.T) {
	frame := BuildMoveToColorTemperatureCommand(370, 0)
	payload := frame[3:]
	if got := binary.LittleEndian.Uint16(payload[0:2]); got != 370 {
		t.Errorf("mireds = %d, want 370", got)
	}
}

func TestBuildSceneCommands(t *testing.T) {
	store := BuildSceneStoreCommand(7, 3)
	if store[2] != zclCmdStoreScene {
		t.Errorf("store command id = %#x", store[2])
	}
	recall := BuildSceneRecallCommand(7, 3)
	if recall[2] != zclCmdRecallScene {
		t.Errorf("recall command id = %#x", recall[2])
	}
	if binary.LittleEndian.Uint16(recall[3:5]) != 7 || recall[5] != 3 {
		t.Errorf("recall payload = %v", recall[3:])
	}
}

func TestBuildBindRequest_RoundTripsAddresses(t *testing.T) {
	src, err := ParseUID("0x00124b0001020304")
	if err != nil {
		t.Fatalf("ParseUID: %v", err)
	}
	dst, err := ParseUID("0x00124b0005060708")
	if err != nil {
		t.Fatalf("ParseUID: %v", err)
	}
	frame := BuildBindRequest(src, 1, 6, dst, 2)
	if len(frame) != 8+1+2+1+8+1 {
		t.Fatalf("len = %d", len(frame))
	}
	if frame[8] != 1 {
		t.Errorf("src endpoint = %d, want 1", frame[8])
	}
	if binary.LittleEndian.Uint16(frame[9:11]) != 6 {
		t.Errorf("cluster = %d, want 6", binary.LittleEndian.Uint16(frame[9:11]))
	}
	if frame[11] != 0x03 {
		t.Errorf("addr mode = %#x, want 0x03", frame[11])
	}
	if frame[20] != 2 {
		t.Errorf("dst endpoint = %d, want 2", frame[20])
	}
}

func TestParseUID_RejectsBadShapes(t *testing.T) {
	cases := []string{
		"",
		"0x00124B0001020304", // uppercase
		"00124b0001020304",   // missing 0x
		"0x00124b000102030",  // too short
		"0x00124b00010203zz", // non-hex
	}
	for _, s := range cases {
		if _, err := ParseUID(s); err == nil {
			t.Errorf("ParseUID(%q) succeeded, want error", s)
		}
	}
}

func TestUID_StringRoundTrip(t *testing.T) {
	const s = "0x00124b0001020304"
	u, err := ParseUID(s)
	if err != nil {
		t.Fatalf("ParseUID: %v", err)
	}
	if u.String() != s {
		t.Errorf("String() = %q, want %q", u.String(), s)
	}
}
