// Package audio is the umbrella for the audio front end used by voiceguard.
//
// Sub-packages:
//
//   - decode: container sniffing and decoding of WAV and MP3 bytes to float PCM
//   - resampler: band-limited sample rate conversion of mono float signals
//   - fbank: short-time spectra, mel filterbanks, MFCC and chroma
package audio
