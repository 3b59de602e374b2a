package database

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ferneyS02/licor-solution/internal/database/models"
)

type seedProduct struct {
	name  string
	price string
	stock int32
	image string
}

var seedCategories = map[string][]seedProduct{
	"Shots": {
		{"Shot Aguardiente", "5000.00", 100, "shot_aguardiente.png"},
		{"Shot Tequila", "8000.00", 80, "shot_tequila.png"},
	},
	"Cervezas": {
		{"Aguila", "4500.00", 120, "aguila.png"},
		{"Poker", "4500.00", 120, "poker.png"},
		{"Club Colombia", "5500.00", 90, "club_colombia.png"},
		{"Corona", "9000.00", 60, "corona.png"},
	},
	"Aguardiente / Rones": {
		{"Aguardiente Antioqueno 750", "65000.00", 25, "antioqueno.png"},
		{"Ron Medellin 750", "70000.00", 20, "ron_medellin.png"},
	},
	"Whisky": {
		{"Old Parr 750", "180000.00", 10, "old_parr.png"},
		{"Buchanans 750", "190000.00", 8, "buchanans.png"},
	},
	"Sin Alcohol": {
		{"Gaseosa", "3500.00", 150, "gaseosa.png"},
		{"Agua", "2500.00", 150, "agua.png"},
	},
	"Cigarrillos": {
		{"Marlboro", "12000.00", 50, "marlboro.png"},
	},
}

var seedUsers = []struct {
	name     string
	role     string
	password string
}{
	{"admin", models.RoleAdmin, "admin123"},
	{"vendedor", models.RoleSeller, "1234"},
	{"sistema", models.RoleSystem, "sistema123"},
}

// EnsureSeed creates the fixed base data when missing: operator accounts,
// the eight tables, and the starter catalog. Safe to run on every boot.
func EnsureSeed(db *gorm.DB) error {
	for _, u := range seedUsers {
		var existing models.User
		err := db.Where("name = ?", u.name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := db.Create(&models.User{Name: u.name, Role: u.role, PasswordHash: string(hash)}).Error; err != nil {
			return err
		}
	}

	for i := 1; i <= 8; i++ {
		name := fmt.Sprintf("Mesa%d", i)
		var table models.Table
		err := db.Where("name = ?", name).First(&table).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&models.Table{Name: name, State: models.TableAvailable}).Error; err != nil {
			return err
		}
	}

	for categoryName, products := range seedCategories {
		var category models.Category
		err := db.Where("name = ?", categoryName).First(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category = models.Category{Name: categoryName}
			if err := db.Create(&category).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		for _, p := range products {
			var existing models.Product
			err := db.Where("name = ?", p.name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			image := p.image
			product := models.Product{
				Name:       p.name,
				Price:      p.price,
				Stock:      p.stock,
				Image:      &image,
				CategoryID: category.ID,
			}
			if err := db.Create(&product).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
