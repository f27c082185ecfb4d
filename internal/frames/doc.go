// Package frames implements the frame sampling stage.
//
// Every <videos>/**/<category>/<name>.mp4 is handed to a Sampler which writes
// <frames>/<category>/<name>/%04d.jpg at a fixed rate and square size. The
// default Sampler shells out to ffmpeg. A video that fails to transcode is
// logged with the tool's diagnostics and the stage moves on; the per-video
// outcome is reported in the returned Summary.
//
// Frame names are 1-based and zero-padded to four digits so that lexical
// order equals chronological order. Videos producing more than 9999 frames
// break that assumption and are flagged with a warning.
package frames
