package matching

import (
	"path"
	"regexp"
	"strings"
)

var mediaExtensions = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".aac": {}, ".wav": {}, ".flac": {}, ".ogg": {}, ".aif": {}, ".aiff": {},
	".mp4": {}, ".m4v": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".webm": {},
	".pdf": {}, ".txt": {}, ".doc": {}, ".docx": {}, ".png": {}, ".jpg": {}, ".jpeg": {},
	".gp": {}, ".gp3": {}, ".gp4": {}, ".gp5": {}, ".gpx": {}, ".mid": {}, ".midi": {}, ".musicxml": {}, ".mscz": {},
}

// noiseTokens are quality and packaging tags that never belong to a title or
// artist name.
var noiseTokens = map[string]struct{}{
	"hd": {}, "hq": {}, "4k": {}, "1080p": {}, "720p": {}, "480p": {},
	"320kbps": {}, "256kbps": {}, "192kbps": {}, "128kbps": {},
	"official": {}, "video": {}, "audio": {}, "lyrics": {}, "lyric": {}, "mv": {},
	"remastered": {}, "remaster": {},
}

var (
	bracketPattern    = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)
	dashSeparator     = regexp.MustCompile(`\s+[-–—]+\s+`)
	bySeparator       = regexp.MustCompile(`(?i)\s+by\s+`)
	trimPunctuation   = " \t-–—_.,:;|/"
	strayBracketChars = "()[]{}"
)

// ParseLabel extracts a title/artist candidate from a filename or track label.
// It never fails: unusable input yields an empty candidate that scores zero.
func ParseLabel(raw string) Candidate {
	label := strings.TrimSpace(raw)
	if strings.ContainsAny(label, "/\\") {
		label = path.Base(strings.ReplaceAll(label, "\\", "/"))
	}
	if ext := strings.ToLower(path.Ext(label)); ext != "" {
		if _, ok := mediaExtensions[ext]; ok {
			label = label[:len(label)-len(ext)]
		}
	}
	label = bracketPattern.ReplaceAllString(label, " ")
	label = strings.Map(func(r rune) rune {
		if r == '_' {
			return ' '
		}
		if strings.ContainsRune(strayBracketChars, r) {
			return ' '
		}
		return r
	}, label)

	title, artist := splitTitleArtist(label)
	title = stripNoise(title)
	artist = stripNoise(artist)
	if title == "" && artist != "" {
		title, artist = artist, ""
	}
	return Candidate{
		Title:         title,
		Artist:        artist,
		NormalizedKey: CandidateKey(title, artist),
	}
}

func splitTitleArtist(label string) (string, string) {
	if loc := dashSeparator.FindStringIndex(label); loc != nil {
		return label[:loc[0]], label[loc[1]:]
	}
	if title, artist, ok := splitOnBy(label); ok {
		return title, artist
	}
	return label, ""
}

// maxByArtistWords bounds the artist side of a "Title by Artist" label.
const maxByArtistWords = 4

// splitOnBy splits at the last " by ". "by" is also an ordinary word in titles
// ("Stand by Me"), so a split needs more than one word on at least one side
// and a short artist side.
func splitOnBy(label string) (string, string, bool) {
	locs := bySeparator.FindAllStringIndex(label, -1)
	if len(locs) == 0 {
		return "", "", false
	}
	loc := locs[len(locs)-1]
	title, artist := label[:loc[0]], label[loc[1]:]
	titleWords, artistWords := len(strings.Fields(title)), len(strings.Fields(artist))
	if titleWords == 0 || artistWords == 0 || artistWords > maxByArtistWords {
		return "", "", false
	}
	if titleWords < 2 && artistWords < 2 {
		return "", "", false
	}
	return title, artist, true
}

func stripNoise(part string) string {
	fields := strings.Fields(part)
	kept := fields[:0]
	for _, field := range fields {
		if _, noisy := noiseTokens[strings.ToLower(strings.Trim(field, trimPunctuation))]; noisy {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Trim(strings.Join(kept, " "), trimPunctuation)
}
