// cache/keys.go
package cache

import "fmt"

// Key builders for every cached namespace. Mutations invalidate with
// the Pattern* counterparts below; adding a key here without a pattern
// means some mutation will serve stale data.

func KeyGameByID(id string) string {
	return fmt.Sprintf("game:id:%s", id)
}

func KeyGameList(page, perPage int) string {
	return fmt.Sprintf("game:list:%d:%d", page, perPage)
}

func KeyContentByID(id string) string {
	return fmt.Sprintf("content:id:%s", id)
}

func KeyContentListUser(userID string, page, perPage int) string {
	return fmt.Sprintf("content:list:user:%s:%d:%d", userID, page, perPage)
}

func KeyContentListPublic(page, perPage int) string {
	return fmt.Sprintf("content:list:public:%d:%d", page, perPage)
}

func KeyGameContent(gameID string, page, perPage int) string {
	return fmt.Sprintf("game:content:%s:%d:%d", gameID, page, perPage)
}

func KeyContentGames(contentID string, page, perPage int) string {
	return fmt.Sprintf("content:games:%s:%d:%d", contentID, page, perPage)
}

func KeyLeaderboard(gameID string, page, perPage int) string {
	return fmt.Sprintf("scores:leaderboard:%s:%d:%d", gameID, page, perPage)
}

func KeyLatestPlayed(userID string, page, perPage int) string {
	return fmt.Sprintf("scores:latest:%s:%d:%d", userID, page, perPage)
}

func PatternGame(id string) string {
	return fmt.Sprintf("game:id:%s*", id)
}

func PatternGameLists() string {
	return "game:list:*"
}

func PatternGameContent(gameID string) string {
	return fmt.Sprintf("game:content:%s:*", gameID)
}

func PatternContentGames(contentID string) string {
	return fmt.Sprintf("content:games:%s:*", contentID)
}

func PatternContent(id string) string {
	return fmt.Sprintf("content:id:%s*", id)
}

func PatternContentListUser(userID string) string {
	return fmt.Sprintf("content:list:user:%s:*", userID)
}

func PatternContentListPublic() string {
	return "content:list:public:*"
}

func PatternLeaderboard(gameID string) string {
	return fmt.Sprintf("scores:leaderboard:%s:*", gameID)
}

func PatternLatestPlayed(userID string) string {
	return fmt.Sprintf("scores:latest:%s:*", userID)
}

func PatternLatestPlayedAll() string {
	return "scores:latest:*"
}
