package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedTables = []string{
	"moderation_cases",
	"battle_results",
	"battle_sessions",
	"instagram_connections",
	"feed_views",
	"matches",
	"likes",
	"photos",
	"users",
}

// SeedTestData resets the database and populates it with demo users and likes.
//
// Behavior:
//  1. Clears every table.
//  2. Creates 20 users (10 male, 10 female) with gofakeit profiles and one photo each.
//  3. Generates likes between opposite genders; every 3rd pair is made mutual
//     and gets a Match row.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	gofakeit.Seed(time.Now().UnixNano())

	// --- Fresh start ---
	for _, table := range seedTables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		for _, table := range seedTables {
			db.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1")
		}
	case "sqlite":
		for _, table := range seedTables {
			db.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table)
		}
	}

	log.Println("Cleared existing data")

	// --- Seed Users (10 male, 10 female) ---
	users := make([]User, 0, 20)
	for i := 1; i <= 20; i++ {
		gender := GenderMale
		if i > 10 {
			gender = GenderFemale
		}

		birth := gofakeit.DateRange(
			time.Now().AddDate(-40, 0, 0),
			time.Now().AddDate(-18, 0, 0),
		).UTC()

		u := User{
			TelegramUserID:   int64(100000 + i),
			TelegramUsername: fmt.Sprintf("luvo_user%d", i),
			FirstName:        gofakeit.FirstName(),
			Birthdate:        &birth,
			Gender:           gender,
			About:            gofakeit.Sentence(10),
			Country:          "Russia",
			City:             gofakeit.RandomString([]string{"Moscow", "Saint Petersburg"}),
		}
		if err := db.Create(&u).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		photo := Photo{
			UserID:    u.ID,
			S3Key:     fmt.Sprintf("seed/%s.jpg", gofakeit.UUID()),
			IsGeneral: true,
			IsActive:  true,
		}
		if err := db.Create(&photo).Error; err != nil {
			return fmt.Errorf("failed to seed photo: %w", err)
		}
		users = append(users, u)
	}
	log.Println("Seeded 20 users.")

	// --- Seed Likes ---
	counter := 0
	for _, liker := range users {
		for j := 0; j < 6; j++ { // each user likes ~6 others
			liked := users[r.Intn(len(users))]
			if liker.ID == liked.ID || liker.Gender == liked.Gender {
				continue
			}

			if err := insertSeedLike(db, liker.ID, liked.ID); err != nil {
				return err
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				if err := insertSeedLike(db, liked.ID, liker.ID); err != nil {
					return err
				}
				u1, u2 := liker.ID, liked.ID
				if u1 > u2 {
					u1, u2 = u2, u1
				}
				db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Match{User1ID: u1, User2ID: u2})
			}
			counter++
		}
	}
	log.Printf("Seeded %d likes.", counter)

	return nil
}

func insertSeedLike(db *gorm.DB, likerID, likedID uint64) error {
	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Like{LikerID: likerID, LikedID: likedID}).Error
	if err != nil {
		return fmt.Errorf("failed to seed like: %w", err)
	}
	return nil
}
