package session

import (
	"errors"
	"fmt"
	"strings"

	"qrscan/camera"
	"qrscan/scanner"
)

// Status texts shown to the user.
const (
	StatusSelectLibrary   = "Select library and start scanning..."
	StatusLibrariesLoaded = "All three libraries loaded successfully"
	StatusLibrariesError  = "Error: QR scanner libraries not loaded"
	StatusGettingCameras  = "Getting cameras..."
	StatusSelectCamera    = "Select a camera to start scanning"
	StatusStartingCamera  = "Starting camera..."
	StatusScanning        = scanner.NoticeScanning
	StatusScanned         = "QR Code successfully scanned!"
	StatusStopped         = "Scanner stopped"
	StatusNoCameras       = "No cameras found"
	StatusNoSwitch        = "No cameras available for switching"
	StatusAccessDenied    = "Camera access denied or not available"
	StatusCameraNotFound  = "Error: Camera not found"

	StatusNoCode       = "No QR code detected"
	StatusUnreadable   = "QR code unreadable - improve lighting/position"
	StatusCameraIssue  = "Camera issue detected"
	StatusScanningBusy = "Scanning..."
)

// classifyScanError maps a per-frame failure message onto a coarse status.
func classifyScanError(message string) string {
	switch {
	case message == "":
		return StatusScanning
	case strings.Contains(message, "No QR code found"):
		return StatusNoCode
	case strings.Contains(message, "MultiFormatReader"), strings.Contains(message, "NotFoundException"):
		return StatusUnreadable
	case strings.Contains(message, "Camera"):
		return StatusCameraIssue
	default:
		return StatusScanningBusy
	}
}

// statusForError turns any failure of a session operation into status text.
func statusForError(err error) string {
	var missing *scanner.LibraryMissingError
	var enum *camera.EnumerationError
	var start *scanner.StartError

	switch {
	case errors.As(err, &missing):
		return "Error: " + missing.Error()

	case errors.As(err, &enum):
		switch {
		case errors.Is(enum, camera.ErrNoCameras):
			return StatusNoCameras
		case enum.Denied:
			return StatusAccessDenied
		default:
			return "Camera enumeration failed: " + enum.Err.Error()
		}

	case errors.As(err, &start):
		switch start.Reason {
		case scanner.ReasonDenied:
			return "Camera access denied - please allow camera permissions: " + start.Err.Error()
		case scanner.ReasonNotFound:
			return "Camera not found - please check your camera connection: " + start.Err.Error()
		case scanner.ReasonBusy:
			return "Camera is already in use by another application: " + start.Err.Error()
		case scanner.ReasonUnsupported:
			return "Camera constraints not supported: " + start.Err.Error()
		default:
			return "Failed to start camera: " + start.Err.Error()
		}

	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// librarySummary describes which libraries loaded at startup.
func librarySummary(missing []*scanner.LibraryMissingError) string {
	if len(missing) == 0 {
		return StatusLibrariesLoaded
	}
	seen := map[scanner.LibraryKind]bool{}
	var names []string
	for _, m := range missing {
		if seen[m.Kind] {
			continue
		}
		seen[m.Kind] = true
		names = append(names, m.Kind.String())
	}
	return "Error: Some libraries failed to load (" + strings.Join(names, ", ") + ")"
}
