package discord

import (
	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/session"
)

// Discord voice is 48kHz stereo opus in 20ms frames.
const (
	voiceSampleRate = 48000
	voiceChannels   = 2
	voiceFrameSize  = 960
)

// receiveVoice decodes incoming opus packets and feeds them to the channel's
// session. It exits when the voice connection's receive channel closes.
// Packets arriving with no active session are dropped.
func (a *Adapter) receiveVoice(vc *discordgo.VoiceConnection, channelID string, done chan struct{}) {
	defer close(done)

	// One decoder per speaking source (SSRC).
	decoders := make(map[uint32]*gopus.Decoder)
	var seq uint64

	for packet := range vc.OpusRecv {
		dec, ok := decoders[packet.SSRC]
		if !ok {
			var err error
			dec, err = gopus.NewDecoder(voiceSampleRate, voiceChannels)
			if err != nil {
				a.logger.Error().Err(err).Uint32("ssrc", packet.SSRC).Msg("opus decoder init failed")
				continue
			}
			decoders[packet.SSRC] = dec
		}

		pcm, err := dec.Decode(packet.Opus, voiceFrameSize, false)
		if err != nil {
			a.logger.Debug().Err(err).Uint32("ssrc", packet.SSRC).Msg("opus decode failed")
			continue
		}

		seq++
		err = a.sessions.PushFrame(channelID, audio.Frame{
			Samples:    audio.PCM16ToFloat32(pcm),
			SampleRate: voiceSampleRate,
			Channels:   voiceChannels,
			Seq:        seq,
			Source:     "discord",
		})
		if err != nil && err != session.ErrNoSession {
			a.logger.Warn().Err(err).Str("channel_id", channelID).Msg("frame dropped")
		}
	}

	a.logger.Debug().Str("channel_id", channelID).Msg("voice receive loop exited")
}
