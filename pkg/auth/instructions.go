package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieGuide explains how to copy the site cookie from a browser
func ShowCookieGuide(w io.Writer) {
	line := strings.Repeat("=", 72)

	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "MANHUAGUI COOKIE GUIDE")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Chapter pages are served per region. Without a cookie the site may")
	fmt.Fprintln(w, "hide the reader script, and extraction fails. The default cookie pins")
	fmt.Fprintln(w, "country=TW; a profile replaces it with your own browser session.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://www.manhuagui.com/ and any chapter page that reads fine.")
	fmt.Fprintln(w, "2. Open Developer Tools (F12, or Cmd+Option+I on macOS).")
	fmt.Fprintln(w, "3. Network tab: reload, click the chapter HTML request.")
	fmt.Fprintln(w, "4. Under Request Headers copy the whole value of 'Cookie:'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The value looks like:")
	fmt.Fprintln(w, "   country=TW; Hm_lvt_xxxx=1700000000; ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Paste it at the prompt. It is stored in the system keyring, or in an")
	fmt.Fprintln(w, "encrypted file when no keyring is available.")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
}

// ShowQuickGuide shows a condensed version for experienced users
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "\nF12 → Network → reload a chapter page → request headers → copy 'Cookie'")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
