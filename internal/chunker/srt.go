package chunker

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Cue is one SRT subtitle entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Lines []string
}

// ParseSRT reads SRT cues. Index numbers in the input are ignored; stitching
// renumbers anyway.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var cues []Cue
	var current *Cue
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case current == nil:
			if trimmed == "" {
				continue
			}
			// Cue starts with an index line, then the timing line.
			if _, err := strconv.Atoi(trimmed); err != nil {
				return nil, fmt.Errorf("line %d: expected cue index, got %q", lineNo, trimmed)
			}
			current = &Cue{Start: -1}
		case current.Start < 0:
			start, end, err := parseTimingLine(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.Start = start
			current.End = end
		case trimmed == "":
			cues = append(cues, *current)
			current = nil
		default:
			current.Lines = append(current.Lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	if current != nil {
		if current.Start < 0 {
			return nil, fmt.Errorf("line %d: cue missing timing line", lineNo)
		}
		cues = append(cues, *current)
	}
	return cues, nil
}

// WriteSRT renders cues with sequential one-based indices.
func WriteSRT(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for i, cue := range cues {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n", i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End)); err != nil {
			return err
		}
		for _, line := range cue.Lines {
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Shift offsets every cue by delta. Chunk-local timestamps carry into the
// hour field naturally because arithmetic happens on durations, not on the
// wrapped HH:MM:SS fields.
func Shift(cues []Cue, delta time.Duration) []Cue {
	shifted := make([]Cue, len(cues))
	for i, cue := range cues {
		cue.Start += delta
		cue.End += delta
		shifted[i] = cue
	}
	return shifted
}

func parseTimingLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timing line %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(value string) (time.Duration, error) {
	main, millis, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	fields := strings.Split(main, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	hours, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	minutes, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	seconds, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	ms, err := strconv.Atoi(millis)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// FormatTimestamp renders a duration as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	millis := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
