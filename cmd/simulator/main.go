package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dom/foodieswipe/internal/api/handlers"
	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/websocket"
)

var dishes = []string{
	"pad-thai", "margherita", "ramen", "tacos-al-pastor", "bibimbap",
	"pho", "falafel-wrap", "butter-chicken", "sushi-platter", "cheeseburger",
	"paella", "gyoza", "shakshuka", "poke-bowl", "lasagna",
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "couple":
		coupleCmd(apiURL, args)
	case "swipe":
		swipeCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Session Simulator - Development tool for couple decision sessions

USAGE:
  simulator <command> [options]

COMMANDS:
  couple    Register two users, pair them, and open a session
  swipe     Pair two users and let both swipe a shared deck over the socket
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Create a couple and print credentials plus the room code
  simulator couple

  # Let two simulated partners swipe until they agree on a dish
  simulator swipe --like-rate=0.4

  # Reproduce a run
  simulator swipe --seed=42`)
}

type couple struct {
	alice, bob *handlers.AuthResponse
	session    *handlers.SessionResponse
}

func setupCouple(client *APIClient) (*couple, error) {
	alice, err := client.RegisterUser("alice")
	if err != nil {
		return nil, err
	}
	bob, err := client.RegisterUser("bob")
	if err != nil {
		return nil, err
	}

	invite, err := client.SendInvite(alice.AccessToken, bob.User.UserCode)
	if err != nil {
		return nil, err
	}
	if err := client.AcceptInvite(bob.AccessToken, invite.ID.String()); err != nil {
		return nil, err
	}

	session, err := client.StartSession(alice.AccessToken)
	if err != nil {
		return nil, err
	}
	return &couple{alice: alice, bob: bob, session: session}, nil
}

func coupleCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("couple", flag.ExitOnError)
	fs.Parse(args)

	client := NewAPIClient(apiURL)

	fmt.Print("Registering and pairing two users... ")
	c, err := setupCouple(client)
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  SESSION OPEN")
	fmt.Println("=========================================")
	fmt.Println()
	for _, u := range []*handlers.AuthResponse{c.alice, c.bob} {
		fmt.Printf("  %-12s %s / %s\n", u.User.DisplayName, u.User.Email, simPassword)
		fmt.Printf("  %-12s token=%s\n", "", u.AccessToken)
	}
	fmt.Println()
	fmt.Printf("  Session ID: %s\n", c.session.Session.ID)
	fmt.Printf("  Room Code:  %s\n", c.session.RoomCode)
	fmt.Println()
	fmt.Println("  Join from a client with session_join and the room code.")
	fmt.Println()
}

func swipeCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("swipe", flag.ExitOnError)
	likeRate := fs.Float64("like-rate", 0.35, "Chance each partner likes a dish (0-1)")
	seed := fs.Int64("seed", 0, "Random seed (default: time based)")
	fs.Parse(args)

	if *likeRate < 0 || *likeRate > 1 {
		fmt.Println("Error: --like-rate must be between 0 and 1")
		os.Exit(1)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	client := NewAPIClient(apiURL)

	fmt.Println("=== Session Simulator: Swipe ===")
	fmt.Println()

	fmt.Print("Registering and pairing two users... ")
	c, err := setupCouple(client)
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (room %s)\n", c.session.RoomCode)

	fmt.Print("Connecting sockets... ")
	alice, err := DialSocket(apiURL, c.alice.AccessToken, "alice")
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	defer alice.Close()
	bob, err := DialSocket(apiURL, c.bob.AccessToken, "bob")
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	defer bob.Close()

	for _, s := range []*Socket{alice, bob} {
		if err := s.Send(websocket.MessageTypeSessionJoin, websocket.SessionJoinPayload{SessionID: c.session.RoomCode}); err != nil {
			fmt.Printf("FAILED\n  Error: %v\n", err)
			os.Exit(1)
		}
		if _, err := s.Await(websocket.MessageTypeSessionJoined, 5*time.Second); err != nil {
			fmt.Printf("FAILED\n  Error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("OK")
	fmt.Println()

	sessionID := c.session.Session.ID.String()
	for i, dish := range dishes {
		for _, s := range []*Socket{alice, bob} {
			action := domain.SwipeActionPass
			if rng.Float64() < *likeRate {
				action = domain.SwipeActionLike
			}

			ack, err := swipe(s, sessionID, dish, action)
			if err != nil {
				fmt.Printf("  [%d/%d] FAILED: %v\n", i+1, len(dishes), err)
				os.Exit(1)
			}
			fmt.Printf("  [%d/%d] %-5s %-6s %s\n", i+1, len(dishes), s.name, action, dish)

			if ack.IsMatch {
				printMatch(client, c, s)
				return
			}
		}
	}

	fmt.Println()
	fmt.Println("Deck exhausted without a match. Try a higher --like-rate.")
	fmt.Printf("Seed: %d\n", *seed)
}

func swipe(s *Socket, sessionID, dish string, action domain.SwipeAction) (*websocket.SwipeAcknowledgedPayload, error) {
	dishData, _ := json.Marshal(map[string]string{"name": dish})
	err := s.Send(websocket.MessageTypeCoupleSwipe, websocket.CoupleSwipePayload{
		SessionID: sessionID,
		DishID:    dish,
		Action:    string(action),
		DishData:  dishData,
	})
	if err != nil {
		return nil, err
	}

	msg, err := s.Await(websocket.MessageTypeSwipeAcknowledged, 5*time.Second)
	if err != nil {
		return nil, err
	}
	var ack websocket.SwipeAcknowledgedPayload
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func printMatch(client *APIClient, c *couple, s *Socket) {
	msg, err := s.Await(websocket.MessageTypeMatchFound, 5*time.Second)
	if err != nil {
		fmt.Printf("Match acknowledged but no match_found event: %v\n", err)
		os.Exit(1)
	}
	var match websocket.MatchFoundPayload
	json.Unmarshal(msg.Payload, &match)

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  MATCH FOUND")
	fmt.Println("=========================================")
	fmt.Println()
	fmt.Printf("  Dish:       %s\n", match.Decision.DishID)
	fmt.Printf("  Decided at: %s\n", match.Decision.DecidedAt.Format(time.RFC3339))
	fmt.Printf("  Session ID: %s\n", match.SessionID)

	if stats, err := client.CoupleStats(c.alice.AccessToken); err == nil {
		fmt.Printf("  Matches:    %v\n", stats["totalMatches"])
	}
	fmt.Println()
}
