package seeders

import (
	"log"

	"learningcenter_go/models"

	"gorm.io/gorm"
)

// SeedAll seeds a demo school with three classes and one user per role.
// Intended for development databases only.
func SeedAll(db *gorm.DB) {
	log.Println("Starting database seeding...")

	school := SeedSchool(db)
	if school != nil {
		SeedClasses(db, school.ID)
		SeedUsers(db, school.ID)
	}

	log.Println("Database seeding completed successfully!")
}

// SeedSchool seeds the schools table
func SeedSchool(db *gorm.DB) *models.School {
	var school models.School
	if err := db.Where("code = ?", "DEMO").First(&school).Error; err == nil {
		log.Println("School already seeded, skipping...")
		return &school
	}

	school = models.School{Name: "Demo Learning Center", Code: "DEMO", Address: "Main Road", IsActive: true}
	if err := db.Create(&school).Error; err != nil {
		log.Printf("Error seeding school: %v", err)
		return nil
	}
	log.Println("School seeded successfully")
	return &school
}

// SeedClasses seeds the classes table
func SeedClasses(db *gorm.DB, schoolID uint) {
	var count int64
	db.Model(&models.Class{}).Where("school_id = ?", schoolID).Count(&count)
	if count > 0 {
		log.Println("Classes already seeded, skipping...")
		return
	}

	classes := []models.Class{
		{SchoolID: schoolID, Name: "Grade 1 A", Grade: 1, Section: "A", IsActive: true},
		{SchoolID: schoolID, Name: "Grade 1 B", Grade: 1, Section: "B", IsActive: true},
		{SchoolID: schoolID, Name: "Grade 2 A", Grade: 2, Section: "A", IsActive: true},
	}
	for _, class := range classes {
		if err := db.Create(&class).Error; err != nil {
			log.Printf("Error seeding class %s: %v", class.Name, err)
		}
	}
	log.Println("Classes seeded successfully")
}

// SeedUsers seeds the users table
func SeedUsers(db *gorm.DB, schoolID uint) {
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	users := []models.User{
		{Username: "admin", Role: "admin", Status: "active"},
		{Username: "manager", Role: "manager", SchoolID: &schoolID, Status: "active"},
		{Username: "trainer", Role: "trainer", SchoolID: &schoolID, Status: "active"},
	}
	for _, user := range users {
		if err := db.Create(&user).Error; err != nil {
			log.Printf("Error seeding user %s: %v", user.Username, err)
		}
	}
	log.Println("Users seeded successfully")
}
