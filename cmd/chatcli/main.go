// Command chatcli is a terminal client for the Adal chat backend. It
// signs in, streams responses over the NDJSON wire and repaints the
// markdown at a bounded frame rate while tokens arrive.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/Devcavi19/adal-ui/pkg/client"
)

type session struct {
	addr   string
	token  string
	chatID string // empty = next send starts a new session
	http   *http.Client
}

func main() {
	addr := flag.String("addr", "http://localhost:5000", "backend address")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	s := &session{addr: strings.TrimRight(*addr, "/"), http: &http.Client{}}
	if err := s.signIn(*email, *password); err != nil {
		log.Fatalf("sign in failed: %v", err)
	}
	fmt.Println("Signed in. Commands: /history, /open <id>, /delete <id>, /new, /quit")

	render := markdownRenderFunc()
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/new":
			s.chatID = ""
			fmt.Println("(new session)")
		case line == "/history":
			s.printHistory()
		case strings.HasPrefix(line, "/open "):
			s.openChat(strings.TrimSpace(strings.TrimPrefix(line, "/open ")), render)
		case strings.HasPrefix(line, "/delete "):
			s.deleteChat(strings.TrimSpace(strings.TrimPrefix(line, "/delete ")))
		default:
			if err := s.send(line, render); err != nil {
				fmt.Println("Something went wrong. Please try again.")
				log.Printf("send: %v", err)
			}
		}
	}
}

// markdownRenderFunc returns glamour-backed rendering, or identity when
// the terminal renderer cannot be built.
func markdownRenderFunc() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(s string) string { return s }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s
		}
		return strings.TrimSuffix(out, "\n")
	}
}

func (s *session) signIn(email, password string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := s.http.Post(s.addr+"/api/auth/signin", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var parsed struct {
		Session struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if parsed.Session.AccessToken == "" {
		return fmt.Errorf("no access token in response")
	}
	s.token = parsed.Session.AccessToken
	return nil
}

func (s *session) request(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, s.addr+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.http.Do(req)
}

// send posts a message and repaints the reply as it streams in. The
// painter moves the cursor back over the previous frame so the block
// updates in place.
func (s *session) send(message string, render func(string) string) error {
	payload := map[string]any{"message": message}
	if s.chatID != "" {
		payload["chat_id"] = s.chatID
	}
	body, _ := json.Marshal(payload)

	resp, err := s.request(http.MethodPost, "/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	fmt.Print("Adal is typing...")
	p := &painter{}
	r := client.NewRenderer(p.paint, client.Config{
		Render: render,
		Cursor: "▌",
		OnFirst: func() {
			// replace the typing indicator with the first real content
			fmt.Print("\r\x1b[K")
		},
	})

	dec := client.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.Flush()
			return err
		}
		if ev.ChatID != "" {
			s.chatID = ev.ChatID
			continue
		}
		if ev.Token != "" {
			r.Append(ev.Token)
		}
	}
	if r.Flush() == "" {
		fmt.Print("\r\x1b[K")
		fmt.Println("Something went wrong. Please try again.")
	}
	fmt.Println()
	return nil
}

func (s *session) printHistory() {
	resp, err := s.request(http.MethodGet, "/api/chat/history", nil)
	if err != nil {
		log.Printf("history: %v", err)
		return
	}
	defer resp.Body.Close()
	var parsed struct {
		History []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("history: %v", err)
		return
	}
	if len(parsed.History) == 0 {
		fmt.Println("(no chats yet)")
		return
	}
	for _, h := range parsed.History {
		marker := " "
		if h.ID == s.chatID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, h.ID, h.Title)
	}
}

// openChat replays a stored session in order, replacing the current view.
func (s *session) openChat(id string, render func(string) string) {
	resp, err := s.request(http.MethodGet, "/api/chat/"+id, nil)
	if err != nil {
		log.Printf("open: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Println("chat not found")
		return
	}
	var parsed struct {
		ChatID   string `json:"chat_id"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("open: %v", err)
		return
	}
	s.chatID = parsed.ChatID
	for _, m := range parsed.Messages {
		if m.Role == "bot" {
			fmt.Println("Adal:")
			fmt.Println(render(m.Content))
		} else {
			fmt.Printf("You: %s\n", m.Content)
		}
	}
}

// deleteChat removes a session; deleting the active one resets the
// client to the new-session state.
func (s *session) deleteChat(id string) {
	resp, err := s.request(http.MethodDelete, "/api/chat/"+id, nil)
	if err != nil {
		log.Printf("delete: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Println("delete failed")
		return
	}
	if id == s.chatID {
		s.chatID = ""
		fmt.Println("(active chat deleted, new session)")
	} else {
		fmt.Println("deleted")
	}
}

// painter redraws a block of terminal lines in place.
type painter struct {
	lines int
}

func (p *painter) paint(out string) {
	if p.lines > 0 {
		fmt.Printf("\x1b[%dA\x1b[J", p.lines)
	}
	fmt.Println(out)
	p.lines = strings.Count(out, "\n") + 1
}
