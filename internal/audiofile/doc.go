// Package audiofile decodes WAV, FLAC, MP3 and Ogg Vorbis files into
// interleaved float32 samples and writes recordings as PCM WAV.
//
// Every decoder yields a Source. Samples are normalized to [-1, 1] and
// interleaved frame by frame, so a Source can feed an audiocore Sink
// directly through audiocore.FrameBuffer.
package audiofile
