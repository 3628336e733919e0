package core

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // Pulse-code modulation format.
	ULAW                            // μ-law encoding format.
	ALAW                            // A-law encoding format.
)

// AudioFileFormat is the container a synthesized clip is stored in.
type AudioFileFormat string

const (
	AudioFileMP3 AudioFileFormat = "mp3"
	AudioFileWAV AudioFileFormat = "wav"
)

// Extension returns the file extension including the leading dot.
func (f AudioFileFormat) Extension() string {
	switch f {
	case AudioFileWAV:
		return ".wav"
	default:
		return ".mp3"
	}
}

// MimeType returns the value used in the viewer's <source type=...>.
func (f AudioFileFormat) MimeType() string {
	switch f {
	case AudioFileWAV:
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}

// AudioFileFormatFromExtension maps ".wav"/".mp3" back to a format.
func AudioFileFormatFromExtension(ext string) AudioFileFormat {
	if ext == ".wav" {
		return AudioFileWAV
	}
	return AudioFileMP3
}

// AudioClip is a complete synthesized utterance, ready to be written to disk.
type AudioClip struct {
	Data   []byte
	Format AudioFileFormat
}

func (c AudioClip) Empty() bool {
	return len(c.Data) == 0
}
