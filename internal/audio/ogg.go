package audio

import (
	"fmt"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

// NewEncoder returns an Opus encoder configured for placeholder tracks.
func NewEncoder() (*opus.Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if err := enc.SetBitrate(Bitrate); err != nil {
		return nil, fmt.Errorf("opus bitrate: %w", err)
	}
	return enc, nil
}

// EncodeOgg encodes PCM samples as Opus and writes them in an Ogg container.
func EncodeOgg(w io.Writer, samples []int16) error {
	enc, err := NewEncoder()
	if err != nil {
		return err
	}

	ogg, err := oggwriter.NewWith(w, SampleRate, Channels)
	if err != nil {
		return fmt.Errorf("ogg writer: %w", err)
	}

	buf := make([]byte, 4000)
	var timestamp uint32
	for i, frame := range Frames(samples) {
		n, err := enc.Encode(frame, buf)
		if err != nil {
			return fmt.Errorf("encode frame %d: %w", i, err)
		}
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				SequenceNumber: uint16(i),
				Timestamp:      timestamp,
			},
			Payload: append([]byte(nil), buf[:n]...),
		}
		if err := ogg.WriteRTP(pkt); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
		timestamp += FrameSize
	}

	return ogg.Close()
}
