package tdt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/embervox/parakeetstream/internal/tensor"
)

// Wire format: h (2*1*640 f32) | c (2*1*640 f32) | hasLastToken (1 byte) |
// lastToken (int32) | hasTimeJump (1 byte) | timeJump (int32).
func marshalState(s *PredictorState) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, s.H.Float32Data()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, s.C.Float32Data()); err != nil {
		return nil, err
	}
	writeOptionalInt32(&buf, s.LastToken)
	writeOptionalInt32(&buf, s.TimeJump)
	return buf.Bytes(), nil
}

func writeOptionalInt32(buf *bytes.Buffer, v *int32) {
	if v == nil {
		buf.WriteByte(0)
		binary.Write(buf, binary.LittleEndian, int32(0))
		return
	}
	buf.WriteByte(1)
	binary.Write(buf, binary.LittleEndian, *v)
}

func unmarshalState(s *PredictorState, data []byte) error {
	r := bytes.NewReader(data)

	hData := make([]float32, lstmLayers*1*lstmHidden)
	if err := binary.Read(r, binary.LittleEndian, &hData); err != nil {
		return fmt.Errorf("tdt: read h: %w", err)
	}
	cData := make([]float32, lstmLayers*1*lstmHidden)
	if err := binary.Read(r, binary.LittleEndian, &cData); err != nil {
		return fmt.Errorf("tdt: read c: %w", err)
	}
	h, err := tensor.NewFloat32([]int64{lstmLayers, 1, lstmHidden}, hData)
	if err != nil {
		return err
	}
	c, err := tensor.NewFloat32([]int64{lstmLayers, 1, lstmHidden}, cData)
	if err != nil {
		return err
	}

	lastToken, err := readOptionalInt32(r)
	if err != nil {
		return fmt.Errorf("tdt: read last_token: %w", err)
	}
	timeJump, err := readOptionalInt32(r)
	if err != nil {
		return fmt.Errorf("tdt: read time_jump: %w", err)
	}

	s.H, s.C = h, c
	s.LastToken = lastToken
	s.TimeJump = timeJump
	s.PredictorOutput = nil // recomputed lazily on next decode
	return nil
}

func readOptionalInt32(r *bytes.Reader) (*int32, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	var v int32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return &v, nil
}
