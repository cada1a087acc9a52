package giveaway

import "fmt"

func RollupKeyLotteries(communityID int64) string {
	return fmt.Sprintf("community:%d:lotteries", communityID)
}

func RollupKeyEntries(communityID int64) string {
	return fmt.Sprintf("community:%d:entries", communityID)
}

func RollupKeyWins(communityID int64) string {
	return fmt.Sprintf("community:%d:wins", communityID)
}
